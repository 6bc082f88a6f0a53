package utils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const mongoConnectTimeout = 10 * time.Second

// MongoProvider hands out a process-wide MongoDB client. The client is
// connected on first use; a failed attempt leaves the provider empty so the
// next request tries again.
type MongoProvider struct {
	uri    string
	logger *zap.Logger

	mu     sync.Mutex
	client *mongo.Client
}

// NewMongoProvider creates a provider for uri without connecting.
func NewMongoProvider(uri string, logger *zap.Logger) *MongoProvider {
	return &MongoProvider{uri: uri, logger: logger}
}

// Client returns the connected client, connecting if needed
func (p *MongoProvider) Client(ctx context.Context) (*mongo.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(p.uri).
		SetMaxPoolSize(5).
		SetServerSelectionTimeout(5 * time.Second).
		SetSocketTimeout(45 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	p.client = client
	p.logger.Info("Connected to MongoDB")
	return client, nil
}

// Collection returns a lookup function for a collection that connects lazily
func (p *MongoProvider) Collection(databaseName, collectionName string) func(context.Context) (*mongo.Collection, error) {
	return func(ctx context.Context) (*mongo.Collection, error) {
		client, err := p.Client(ctx)
		if err != nil {
			return nil, err
		}
		return client.Database(databaseName).Collection(collectionName), nil
	}
}

// Disconnect closes the client if one was opened
func (p *MongoProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	err := p.client.Disconnect(ctx)
	p.client = nil
	return err
}
