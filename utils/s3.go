package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/raushankrgupta/birthday-club/models"
)

type s3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ArchiveExporter writes each archived batch to S3 as a JSON document
type S3ArchiveExporter struct {
	client s3PutObjectAPI
	bucket string
}

// NewS3ArchiveExporter initializes the S3 client from the default AWS config chain
func NewS3ArchiveExporter(ctx context.Context, region, bucket string) (*S3ArchiveExporter, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config, %v", err)
	}
	return &S3ArchiveExporter{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

type archiveSnapshot struct {
	RunID      string                `json:"run_id"`
	ExportedAt time.Time             `json:"exported_at"`
	Count      int                   `json:"count"`
	Users      []models.ArchivedUser `json:"users"`
}

// ArchiveObjectKey is the object key used for a cleanup run.
func ArchiveObjectKey(runID string, at time.Time) string {
	return fmt.Sprintf("archive/%s/%s.json", at.UTC().Format("2006-01-02"), runID)
}

// ExportArchive uploads the batch and returns the object key
func (e *S3ArchiveExporter) ExportArchive(ctx context.Context, runID string, users []models.ArchivedUser) (string, error) {
	now := time.Now()
	body, err := json.Marshal(archiveSnapshot{RunID: runID, ExportedAt: now, Count: len(users), Users: users})
	if err != nil {
		return "", fmt.Errorf("failed to encode archive snapshot: %w", err)
	}

	key := ArchiveObjectKey(runID, now)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive snapshot to S3: %w", err)
	}
	return key, nil
}
