package models

import "time"

// RateLimitCounter tracks invocations of one guarded operation
type RateLimitCounter struct {
	Endpoint    string    `bson:"endpoint" json:"endpoint"`
	Counter     int       `bson:"counter" json:"counter"`
	LastUpdated time.Time `bson:"last_updated" json:"last_updated"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
