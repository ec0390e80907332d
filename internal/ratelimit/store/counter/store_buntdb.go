package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/buntdb"
)

// BuntStore keeps counters in a buntdb database with per-key TTLs. Use path
// ":memory:" for a purely in-process cache.
type BuntStore struct {
	db *buntdb.DB
}

func OpenBunt(path string) (*BuntStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open buntdb %q: %w", path, err)
	}
	return &BuntStore{db: db}, nil
}

func (s *BuntStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	var (
		count int
		ttl   time.Duration
	)
	err := s.db.Update(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(key)
		switch {
		case errors.Is(err, buntdb.ErrNotFound):
			count, ttl = 1, window
		case err != nil:
			return err
		default:
			n, convErr := strconv.Atoi(raw)
			if convErr != nil {
				return fmt.Errorf("corrupt counter %q: %w", key, convErr)
			}
			count = n + 1
			ttl, err = tx.TTL(key)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = window
			}
		}
		_, _, err = tx.Set(key, strconv.Itoa(count), &buntdb.SetOptions{Expires: true, TTL: ttl})
		return err
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("increment counter: %w", err)
	}
	return count, time.Now().Add(ttl), nil
}

func (s *BuntStore) Close() error {
	return s.db.Close()
}
