package eventsink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/mock/gomock"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/chain"
	"github.com/goodnatureofminers/reach-engine/internal/model"
)

var contract = common.HexToAddress("0x00000000000000000000000000000000000000c0")

func logAt(seq uint64, event model.Event) chain.Log {
	return chain.Log{
		Seq:       seq,
		Contract:  contract,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600)),
		Event:     event,
	}
}

func TestRecord(t *testing.T) {
	got, err := Record(logAt(3, model.ClaimingToggled{Paused: true}), 100)
	require.NoError(t, err)
	require.Equal(t, uint64(103), got.Sequence)
	require.Equal(t, contract.Hex(), got.Contract)
	require.Equal(t, "ClaimingToggled", got.Name)
	require.JSONEq(t, `{"paused":true}`, got.Payload)
	require.Equal(t, time.UTC, got.Timestamp.Location())

	again, err := Record(logAt(3, model.ClaimingToggled{Paused: true}), 100)
	require.NoError(t, err)
	require.Equal(t, got.ID, again.ID, "ids are derived from the sequence")

	other, err := Record(logAt(4, model.ClaimingToggled{}), 100)
	require.NoError(t, err)
	require.NotEqual(t, got.ID, other.ID)
}

func TestWriter_Start(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	metrics := NewMockMetrics(ctrl)
	errDown := errors.New("clickhouse down")
	repo.EXPECT().MaxSequence(gomock.Any()).Return(uint64(0), errDown)

	w := NewWriter(repo, metrics, clockwork.NewFakeClock(), zap.NewNop())
	if err := w.Start(context.Background()); !errors.Is(err, errDown) {
		t.Fatalf("Start() error = %v, want %v", err, errDown)
	}
}

func TestWriter_ConsumeFlushesOnStop(t *testing.T) {
	tests := []struct {
		name     string
		flushErr error
	}{
		{name: "flush succeeds"},
		{name: "flush fails", flushErr: errors.New("insert failed")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := NewMockRepository(ctrl)
			metrics := NewMockMetrics(ctrl)

			var stored []model.EventRecord
			gomock.InOrder(
				repo.EXPECT().MaxSequence(gomock.Any()).Return(uint64(10), nil),
				repo.EXPECT().InsertEvents(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, events []model.EventRecord) error {
						stored = append(stored, events...)
						return tt.flushErr
					}),
			)
			metrics.EXPECT().ObserveFlush(tt.flushErr, 3, gomock.AssignableToTypeOf(time.Time{}))

			w := NewWriter(repo, metrics, clockwork.NewFakeClock(), zap.NewNop())
			require.NoError(t, w.Start(context.Background()))
			w.Consume([]chain.Log{
				logAt(1, model.ClaimingToggled{Paused: true}),
				logAt(2, model.ClaimingToggled{Paused: false}),
			})
			w.Consume([]chain.Log{logAt(3, model.LimitsRemoved{})})
			w.Stop()

			require.Len(t, stored, 3)
			for i, r := range stored {
				require.Equal(t, uint64(11+i), r.Sequence)
			}
			require.Equal(t, "LimitsRemoved", stored[2].Name)
		})
	}
}

func TestWriter_ConsumeAfterStopDrops(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	metrics := NewMockMetrics(ctrl)
	repo.EXPECT().MaxSequence(gomock.Any()).Return(uint64(0), nil)
	metrics.EXPECT().ObserveDropped().Times(2)

	w := NewWriter(repo, metrics, clockwork.NewFakeClock(), zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Consume([]chain.Log{logAt(1, model.LimitsRemoved{}), logAt(2, model.LimitsRemoved{})})
}
