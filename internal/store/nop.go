package store

import (
	"time"

	"github.com/amishk599/a11yjobs/internal/model"
)

// NopStore discards delivery records. Used when no history path is configured.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) Record(model.DeliveryRecord) error { return nil }

func (s *NopStore) Cleanup(olderThan time.Duration) error { return nil }
