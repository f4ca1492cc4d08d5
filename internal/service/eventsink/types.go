package eventsink

import (
	"context"
	"time"

	"github.com/goodnatureofminers/reach-engine/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Repository interface {
		InsertEvents(ctx context.Context, events []model.EventRecord) error
		MaxSequence(ctx context.Context) (uint64, error)
	}
	Metrics interface {
		ObserveFlush(err error, size int, started time.Time)
		ObserveDropped()
	}
)
