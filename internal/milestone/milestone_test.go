package milestone

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/store/memory"
)

func seedRevenue(t *testing.T, repo *memory.Store, amounts ...int64) {
	t.Helper()
	for _, amount := range amounts {
		_, err := repo.CreateTransaction(context.Background(), domain.Transaction{
			Kind:            domain.KindSale,
			TotalValuePaise: amount,
			AmountPaise:     amount,
			Status:          domain.TxStatusCompleted,
			Payment:         domain.Payment{Method: domain.PaymentMethodCash, Status: domain.PaymentStatusPaid},
		})
		require.NoError(t, err)
	}
}

func TestObserveAnnouncesHighestCrossedThresholdOnce(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := start
	detector := NewDetector(repo, []int64{100000, 50000, 500000}).WithClock(func() time.Time { return clock })

	celebration, err := detector.Observe(ctx)
	require.NoError(t, err)
	assert.Nil(t, celebration, "nothing sold yet")

	seedRevenue(t, repo, 60000, 45000)
	clock = start.Add(72 * time.Hour)

	celebration, err = detector.Observe(ctx)
	require.NoError(t, err)
	require.NotNil(t, celebration)
	assert.Equal(t, int64(100000), celebration.ThresholdPaise)
	assert.Equal(t, int64(105000), celebration.TotalPaise)
	assert.Equal(t, 3, celebration.DaysTaken)

	require.NoError(t, detector.Acknowledge(ctx, 100000))

	celebration, err = detector.Observe(ctx)
	require.NoError(t, err)
	assert.Nil(t, celebration)

	state, err := repo.GetMilestoneState(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{50000, 100000}, state.Celebrated)
	assert.Equal(t, start, state.TrackingStartedAt)
}

func TestAcknowledgedThresholdSurvivesNewDetector(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	seedRevenue(t, repo, 200000)

	first := NewDetector(repo, []int64{100000})
	celebration, err := first.Observe(ctx)
	require.NoError(t, err)
	require.NotNil(t, celebration)
	require.NoError(t, first.Acknowledge(ctx, celebration.ThresholdPaise))

	restarted := NewDetector(repo, []int64{100000})
	celebration, err = restarted.Observe(ctx)
	require.NoError(t, err)
	assert.Nil(t, celebration)
}

func TestExpensesAndOpenOrdersDoNotCount(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	_, err := repo.CreateTransaction(ctx, domain.Transaction{Kind: domain.KindExpense, AmountPaise: 900000, Status: domain.TxStatusCompleted})
	require.NoError(t, err)
	_, err = repo.CreateTransaction(ctx, domain.Transaction{Kind: domain.KindOrder, AmountPaise: 900000, TotalValuePaise: 900000, Status: domain.TxStatusPending})
	require.NoError(t, err)

	celebration, err := NewDetector(repo, []int64{100000}).Observe(ctx)
	require.NoError(t, err)
	assert.Nil(t, celebration)
}

func TestAcknowledgeUnknownThreshold(t *testing.T) {
	err := NewDetector(memory.New(), []int64{100000}).Acknowledge(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrUnknownThreshold)
}

func TestParseThresholds(t *testing.T) {
	got, err := ParseThresholds("10000, 50000,,1e5")
	require.NoError(t, err)
	assert.Equal(t, []int64{1000000, 5000000, 10000000}, got)

	_, err = ParseThresholds("100.555")
	assert.Error(t, err)

	_, err = ParseThresholds("-5")
	assert.Error(t, err)

	_, err = ParseThresholds("lots")
	assert.Error(t, err)

	_, err = ParseThresholds("184467440737095519.16")
	assert.Error(t, err)
}
