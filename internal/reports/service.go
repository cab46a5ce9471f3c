// Package reports aggregates counts for the dashboard and the
// most-borrowed listing.
package reports

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"libcirc/pkg/domain"
	"libcirc/pkg/store"
)

// Config holds reporting settings. Now defaults to time.Now.
type Config struct {
	Store store.Store
	Now   func() time.Time
}

// Service computes count aggregates over the store.
type Service struct {
	store store.Store
	now   func() time.Time
}

// New constructs the reports service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: cfg.Store, now: now}, nil
}

// Stats is the dashboard snapshot.
type Stats struct {
	TotalBooks     int64 `json:"totalBooks"`
	AvailableBooks int64 `json:"availableBooks"`
	ActiveMembers  int64 `json:"activeMembers"`
	OpenLoans      int64 `json:"openLoans"`
	OverdueLoans   int64 `json:"overdueLoans"`
}

// Dashboard gathers the five headline counts. The counts are independent
// reads, so they run concurrently.
func (s *Service) Dashboard() (Stats, error) {
	var st Stats
	today := domain.DateOf(s.now())
	g := new(errgroup.Group)
	g.Go(func() error {
		n, err := s.store.CountBooks()
		st.TotalBooks = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountAvailableBooks()
		st.AvailableBooks = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountActiveMembers()
		st.ActiveMembers = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountOpenLoans()
		st.OpenLoans = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountOverdueLoans(today)
		st.OverdueLoans = n
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("gather stats: %w", err)
	}
	return st, nil
}

// MostBorrowed lists the top books by total loan count.
func (s *Service) MostBorrowed(limit int) ([]store.BorrowCount, error) {
	rows, err := s.store.MostBorrowedBooks(limit)
	if err != nil {
		return nil, fmt.Errorf("fetch most borrowed: %w", err)
	}
	return rows, nil
}
