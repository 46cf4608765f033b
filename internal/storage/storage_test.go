package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/polyflip/updown-arb/internal/events"
	"github.com/polyflip/updown-arb/pkg/types"
)

func testOpportunity() *types.Opportunity {
	return &types.Opportunity{
		ID:           "opp-1",
		MarketID:     "mkt-1",
		MarketSlug:   "btc-updown-15m",
		AskUp:        48,
		AskDown:      47,
		SizeUp:       25,
		SizeDown:     40,
		MarginTicks:  5,
		TicksPerUnit: 100,
		SeqUp:        10,
		SeqDown:      20,
		DetectedAt:   time.Now(),
	}
}

func testResult(success bool) *types.ExecutionResult {
	return &types.ExecutionResult{
		AttemptID:      "att-1",
		OpportunityID:  "opp-1",
		MarketID:       "mkt-1",
		Strategy:       "maker_both",
		Success:        success,
		PairsFilled:    25,
		TotalCost:      23.25,
		RealizedProfit: 1.75,
		StartedAt:      time.Now(),
		FinishedAt:     time.Now(),
	}
}

func TestPostgresStoreOpportunity(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := &PostgresStorage{db: db, logger: zaptest.NewLogger(t)}
	opp := testOpportunity()

	mock.ExpectExec("INSERT INTO opportunities").
		WithArgs(
			opp.ID,
			opp.MarketID,
			opp.MarketSlug,
			sqlmock.AnyArg(),
			0.48,
			0.47,
			opp.SizeUp,
			opp.SizeDown,
			0.05,
			0.0,
			int64(10),
			int64(20),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.StoreOpportunity(context.Background(), opp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreExecution(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := &PostgresStorage{db: db, logger: zaptest.NewLogger(t)}

	mock.ExpectExec("INSERT INTO executions").
		WithArgs(
			"att-1", "opp-1", "mkt-1", "maker_both",
			true, 25.0, 23.25, 1.75,
			false, sqlmock.AnyArg(), sqlmock.AnyArg(), "",
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.StoreExecution(context.Background(), testResult(true)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreIncident(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := &PostgresStorage{db: db, logger: zaptest.NewLogger(t)}

	mock.ExpectExec("INSERT INTO risk_incidents").
		WithArgs("mkt-1", "partial_fill_unresolved", "hedge rejected", 12.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.StoreIncident(context.Background(), &types.RiskIncident{
		MarketID:   "mkt-1",
		Kind:       "partial_fill_unresolved",
		Detail:     "hedge rejected",
		Exposure:   12.5,
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreOpportunityError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := &PostgresStorage{db: db, logger: zaptest.NewLogger(t)}

	mock.ExpectExec("INSERT INTO opportunities").
		WillReturnError(sqlmock.ErrCancelled)

	err = store.StoreOpportunity(context.Background(), testOpportunity())
	assert.Error(t, err)
}

func TestPostgresClose(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := &PostgresStorage{db: db, logger: zaptest.NewLogger(t)}
	mock.ExpectClose()

	require.NoError(t, store.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsoleStorageAcceptsRecords(t *testing.T) {
	t.Parallel()

	store := NewConsoleStorage(zaptest.NewLogger(t))
	ctx := context.Background()

	assert.NoError(t, store.StoreOpportunity(ctx, testOpportunity()))
	assert.NoError(t, store.StoreExecution(ctx, testResult(false)))
	assert.NoError(t, store.StoreIncident(ctx, &types.RiskIncident{MarketID: "mkt-1", Kind: "test"}))
	assert.NoError(t, store.Close())
}

func TestStorageInterface(t *testing.T) {
	t.Parallel()

	var _ Storage = NewConsoleStorage(zaptest.NewLogger(t))
	var _ Storage = &PostgresStorage{}
}

// recordingStorage counts writes for sink tests.
type recordingStorage struct {
	opps      chan *types.Opportunity
	results   chan *types.ExecutionResult
	incidents chan *types.RiskIncident
}

func newRecordingStorage() *recordingStorage {
	return &recordingStorage{
		opps:      make(chan *types.Opportunity, 8),
		results:   make(chan *types.ExecutionResult, 8),
		incidents: make(chan *types.RiskIncident, 8),
	}
}

func (r *recordingStorage) StoreOpportunity(_ context.Context, opp *types.Opportunity) error {
	r.opps <- opp
	return nil
}

func (r *recordingStorage) StoreExecution(_ context.Context, result *types.ExecutionResult) error {
	r.results <- result
	return nil
}

func (r *recordingStorage) StoreIncident(_ context.Context, incident *types.RiskIncident) error {
	r.incidents <- incident
	return nil
}

func (r *recordingStorage) Close() error { return nil }

func TestSinkPersistsBusEvents(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	bus := events.NewBus(logger)
	defer bus.Close()

	rec := newRecordingStorage()
	sink := NewSink(SinkConfig{Store: rec, Bus: bus, Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)

	// Wait for the subscription before publishing.
	require.Eventually(t, func() bool {
		return bus.HasSubscriber(sinkSubscriber)
	}, time.Second, 5*time.Millisecond)

	bus.Publish(events.OpportunityDetected{Opportunity: *testOpportunity()})
	bus.Publish(events.ExecutionCompleted{Result: *testResult(true)})
	bus.Publish(events.RiskIncident{Incident: types.RiskIncident{MarketID: "mkt-1", Kind: "partial_fill_unresolved"}})
	bus.Publish(events.MarketRemoved{MarketID: "mkt-1", Reason: "expired"})

	select {
	case opp := <-rec.opps:
		assert.Equal(t, "opp-1", opp.ID)
	case <-time.After(time.Second):
		t.Fatal("opportunity never persisted")
	}
	select {
	case result := <-rec.results:
		assert.Equal(t, "att-1", result.AttemptID)
	case <-time.After(time.Second):
		t.Fatal("execution never persisted")
	}
	select {
	case incident := <-rec.incidents:
		assert.Equal(t, "mkt-1", incident.MarketID)
	case <-time.After(time.Second):
		t.Fatal("incident never persisted")
	}
}
