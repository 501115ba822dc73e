package model

import (
	"context"
	"time"
)

// DeliveryResult is the outcome of delivering one message to one destination.
type DeliveryResult struct {
	Destination string
	Delivered   bool
	Err         error
}

// Notifier delivers a message to every configured destination. A failure for
// one destination never prevents delivery to the others.
type Notifier interface {
	Deliver(ctx context.Context, text string) []DeliveryResult
}

// DeliveryRecord is one row of the delivery history.
type DeliveryRecord struct {
	Mode        string // "summary" or "analysis"
	Key         IdentityKey
	Destination string
	Delivered   bool
	Error       string
	At          time.Time
}

// DeliveryLog keeps a history of delivery attempts.
type DeliveryLog interface {
	Record(rec DeliveryRecord) error
	Cleanup(olderThan time.Duration) error
}
