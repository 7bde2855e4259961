package repository

import (
	"context"
	"time"

	"github.com/mr1hm/go-weather-ticker/internal/models"
)

// Record is a stored alert plus the issue time reported by its source.
type Record struct {
	Alert models.Alert
	Sent  time.Time
}

type AlertRepository interface {
	// Upsert inserts or replaces the alert with the same ID.
	Upsert(ctx context.Context, r Record) error
	// SentAt returns the stored issue time for id. ok is false when the alert
	// is unknown.
	SentAt(ctx context.Context, id string) (sent time.Time, ok bool, err error)
	// ListActive removes expired alerts and returns the rest ordered by
	// event priority, then expiration.
	ListActive(ctx context.Context) ([]models.Alert, error)
	RemoveExpired(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int, error)
}
