package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/clickhouse"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	tcClickhouse "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"github.com/goodnatureofminers/reach-engine/internal/model"
)

const (
	clickhouseImage = "clickhouse/clickhouse-server:25.11"
)

type RepositorySuite struct {
	suite.Suite
	ctx        context.Context
	cancel     context.CancelFunc
	container  *tcClickhouse.ClickHouseContainer
	dsn        string
	repo       *Repository
	metrics    *MockMetrics
	metricsCtl *gomock.Controller
	testCtx    context.Context
	testCancel context.CancelFunc
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)

	container, err := tcClickhouse.Run(s.ctx,
		clickhouseImage,
		tcClickhouse.WithUsername("default"),
		tcClickhouse.WithDatabase("default"),
	)
	s.Require().NoError(err)

	s.container = container

	dsn, err := container.ConnectionString(s.ctx)
	s.Require().NoError(err)
	s.dsn = dsn
}

func (s *RepositorySuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *RepositorySuite) SetupTest() {
	s.testCtx, s.testCancel = context.WithTimeout(context.Background(), time.Minute)
	s.metricsCtl = gomock.NewController(s.T())
	s.metrics = NewMockMetrics(s.metricsCtl)
	s.metrics.EXPECT().Observe(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	s.Require().NoError(applyMigrationsUp(s.dsn))

	repo, err := NewRepository(s.dsn, s.metrics)
	s.Require().NoError(err)
	s.repo = repo
}

func (s *RepositorySuite) TearDownTest() {
	if s.testCancel != nil {
		s.testCancel()
	}
	if s.repo != nil {
		s.Require().NoError(s.repo.Close())
	}
	s.Require().NoError(applyMigrationsDown(s.dsn))
	if s.metricsCtl != nil {
		s.metricsCtl.Finish()
	}
}

func newEvent(contract string, seq uint64, name string, ts time.Time) model.EventRecord {
	return model.EventRecord{
		ID:        uuid.New(),
		Sequence:  seq,
		Contract:  contract,
		Name:      name,
		Payload:   fmt.Sprintf(`{"seq":%d}`, seq),
		Timestamp: ts,
	}
}

func (s *RepositorySuite) TestInsertAndQueryEvents() {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []model.EventRecord{
		newEvent("0xaaa", 1, "Transfer", ts),
		newEvent("0xbbb", 2, "MissionCreated", ts.Add(time.Second)),
		newEvent("0xaaa", 3, "FeesCollected", ts.Add(2*time.Second)),
		newEvent("0xaaa", 4, "Transfer", ts.Add(3*time.Second)),
	}
	s.Require().NoError(s.repo.InsertEvents(s.testCtx, events))

	got, err := s.repo.EventsByContract(s.testCtx, "0xaaa", 0, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	for i, want := range []model.EventRecord{events[0], events[2], events[3]} {
		s.Equal(want.ID, got[i].ID)
		s.Equal(want.Sequence, got[i].Sequence)
		s.Equal(want.Name, got[i].Name)
		s.Equal(want.Payload, got[i].Payload)
		s.True(want.Timestamp.Equal(got[i].Timestamp))
	}

	page, err := s.repo.EventsByContract(s.testCtx, "0xaaa", 1, 1)
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal(uint64(3), page[0].Sequence)

	seq, err := s.repo.MaxSequence(s.testCtx)
	s.Require().NoError(err)
	s.Equal(uint64(4), seq)
}

func (s *RepositorySuite) TestMaxSequenceEmpty() {
	seq, err := s.repo.MaxSequence(s.testCtx)
	s.Require().NoError(err)
	s.Zero(seq)
}

func (s *RepositorySuite) TestReplayedBatchIsDeduplicated() {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := []model.EventRecord{newEvent("0xccc", 7, "TopUp", ts)}
	s.Require().NoError(s.repo.InsertEvents(s.testCtx, batch))
	s.Require().NoError(s.repo.InsertEvents(s.testCtx, batch))

	got, err := s.repo.EventsByContract(s.testCtx, "0xccc", 0, 10)
	s.Require().NoError(err)
	s.Len(got, 1)
}

func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working dir: %w", err)
	}

	for {
		if _, statErr := os.Stat(filepath.Join(dir, "go.mod")); statErr == nil {
			return dir, nil
		}
		next := filepath.Dir(dir)
		if next == dir {
			return "", fmt.Errorf("go.mod not found from %s", dir)
		}
		dir = next
	}
}

func applyMigrationsUp(dsn string) error {
	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeMigrator(m)
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func applyMigrationsDown(dsn string) error {
	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeMigrator(m)
	}()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	root, err := moduleRoot()
	if err != nil {
		return nil, err
	}

	sourceURL := fmt.Sprintf("file://%s", filepath.Join(root, "migrations", "clickhouse"))
	m, err := migrate.New(sourceURL, withMultiStatement(dsn))
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return m, nil
}

func withMultiStatement(dsn string) string {
	if strings.Contains(dsn, "x-multi-statement=") {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + "x-multi-statement=true"
}

func closeMigrator(m *migrate.Migrate) error {
	if m == nil {
		return nil
	}
	sourceErr, dbErr := m.Close()
	if sourceErr != nil && dbErr != nil {
		return fmt.Errorf("close migrator: source: %v; database: %v", sourceErr, dbErr)
	}
	if sourceErr != nil {
		return fmt.Errorf("close migrator: source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close migrator: database: %w", dbErr)
	}
	return nil
}
