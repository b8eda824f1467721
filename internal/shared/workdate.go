package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// WorkdateStore holds the calendar date a branch's front desk is currently
// working on. The date outlives any single client view: a console reload
// lands back on the same day instead of today. One cell per branch,
// injected into whichever component needs it.
type WorkdateStore struct {
	client *redis.Client
	ttl    time.Duration
}

const workdateLayout = "2006-01-02"

// NewWorkdateStore constructs the store. A zero ttl keeps dates forever;
// in practice a day-scale ttl is used so stale cells expire overnight.
func NewWorkdateStore(client *redis.Client, ttl time.Duration) *WorkdateStore {
	return &WorkdateStore{client: client, ttl: ttl}
}

func workdateKey(branchID int64) string {
	return fmt.Sprintf("workdate:branch:%d", branchID)
}

// Set records the working date for a branch.
func (s *WorkdateStore) Set(ctx context.Context, branchID int64, date time.Time) error {
	if s == nil || s.client == nil {
		return errors.New("workdate store not initialised")
	}
	return s.client.Set(ctx, workdateKey(branchID), date.Format(workdateLayout), s.ttl).Err()
}

// Get returns the working date for a branch, falling back to today (UTC,
// midnight) when no date has been recorded yet.
func (s *WorkdateStore) Get(ctx context.Context, branchID int64) (time.Time, error) {
	if s == nil || s.client == nil {
		return time.Time{}, errors.New("workdate store not initialised")
	}
	val, err := s.client.Get(ctx, workdateKey(branchID)).Result()
	if errors.Is(err, redis.Nil) {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	if err != nil {
		return time.Time{}, err
	}
	date, err := time.Parse(workdateLayout, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("workdate: corrupt cell for branch %d: %w", branchID, err)
	}
	return date, nil
}

// Clear drops the cell, next Get falls back to today.
func (s *WorkdateStore) Clear(ctx context.Context, branchID int64) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, workdateKey(branchID)).Err()
}
