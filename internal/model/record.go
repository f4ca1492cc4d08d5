package model

import (
	"time"

	"github.com/google/uuid"
)

// EventRecord is a committed ledger event persisted to ClickHouse.
type EventRecord struct {
	ID        uuid.UUID
	Sequence  uint64
	Contract  string
	Name      string
	Payload   string
	Timestamp time.Time
}
