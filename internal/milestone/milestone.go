// Package milestone detects when cumulative takings cross a configured
// threshold for the first time.
//
// Celebrated thresholds are persisted, so a threshold is announced once and
// stays quiet across restarts after it has been acknowledged.
package milestone

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/store"
)

var ErrUnknownThreshold = errors.New("unknown milestone threshold")

// Repository is the slice of store.Repository the detector needs.
type Repository interface {
	SumRevenue(ctx context.Context) (int64, error)
	GetMilestoneState(ctx context.Context) (*domain.MilestoneState, error)
	SaveMilestoneState(ctx context.Context, state domain.MilestoneState) error
}

type Detector struct {
	repo       Repository
	thresholds []int64
	now        func() time.Time
	mu         sync.Mutex
}

// NewDetector builds a detector over thresholds given in paise.
func NewDetector(repo Repository, thresholds []int64) *Detector {
	sorted := slices.Clone(thresholds)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return &Detector{
		repo:       repo,
		thresholds: sorted,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the detector's time source.
func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

// Observe returns the highest threshold the running total has reached that
// has not been celebrated yet, or nil when there is nothing to announce.
// The first call starts the tracking clock.
func (d *Detector) Observe(ctx context.Context) (*domain.Celebration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, err := d.loadState(ctx)
	if err != nil {
		return nil, err
	}
	total, err := d.repo.SumRevenue(ctx)
	if err != nil {
		return nil, err
	}

	for i := len(d.thresholds) - 1; i >= 0; i-- {
		threshold := d.thresholds[i]
		if threshold > total {
			continue
		}
		if slices.Contains(state.Celebrated, threshold) {
			return nil, nil
		}
		return &domain.Celebration{
			ThresholdPaise: threshold,
			DaysTaken:      daysBetween(state.TrackingStartedAt, d.now()),
			TotalPaise:     total,
		}, nil
	}
	return nil, nil
}

// Acknowledge marks threshold and every lower threshold as celebrated.
func (d *Detector) Acknowledge(ctx context.Context, threshold int64) error {
	if !slices.Contains(d.thresholds, threshold) {
		return ErrUnknownThreshold
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	state, err := d.loadState(ctx)
	if err != nil {
		return err
	}
	for _, t := range d.thresholds {
		if t > threshold {
			break
		}
		if !slices.Contains(state.Celebrated, t) {
			state.Celebrated = append(state.Celebrated, t)
		}
	}
	slices.Sort(state.Celebrated)
	return d.repo.SaveMilestoneState(ctx, *state)
}

func (d *Detector) loadState(ctx context.Context) (*domain.MilestoneState, error) {
	state, err := d.repo.GetMilestoneState(ctx)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	fresh := domain.MilestoneState{TrackingStartedAt: d.now(), Celebrated: []int64{}}
	if err := d.repo.SaveMilestoneState(ctx, fresh); err != nil {
		return nil, err
	}
	return &fresh, nil
}

func daysBetween(from time.Time, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}

var maxThresholdPaise = decimal.NewFromInt(math.MaxInt64)

// ParseThresholds reads a comma separated list of rupee amounts such as
// "10000, 50000, 1e5" and returns them in paise.
func ParseThresholds(raw string) ([]int64, error) {
	thresholds := make([]int64, 0, 8)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rupees, err := decimal.NewFromString(part)
		if err != nil {
			return nil, fmt.Errorf("milestone threshold %q: %w", part, err)
		}
		paise := rupees.Shift(2)
		if !paise.IsInteger() || !paise.IsPositive() {
			return nil, fmt.Errorf("milestone threshold %q must be a positive amount with at most 2 decimals", part)
		}
		if paise.GreaterThan(maxThresholdPaise) {
			return nil, fmt.Errorf("milestone threshold %q is too large", part)
		}
		thresholds = append(thresholds, paise.IntPart())
	}
	return thresholds, nil
}
