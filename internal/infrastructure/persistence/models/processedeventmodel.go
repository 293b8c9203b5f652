package models

import (
	"time"

	"github.com/maxnet-vpn/maxnet/internal/shared/constants"
)

// ProcessedEventModel records one externally-delivered idempotency key. The
// unique index on (provider, event_id) is the idempotency gate: a duplicate
// insert means the event was already handled. Rows are never mutated or
// deleted; the table doubles as an audit trail.
type ProcessedEventModel struct {
	ID        uint   `gorm:"primarykey"`
	Provider  string `gorm:"not null;size:64;uniqueIndex:idx_provider_event,priority:1"`
	EventID   string `gorm:"not null;size:255;uniqueIndex:idx_provider_event,priority:2"`
	CreatedAt time.Time
}

// TableName specifies the table name for GORM.
func (ProcessedEventModel) TableName() string {
	return constants.TableProcessedEvents
}
