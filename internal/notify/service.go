// Package notify derives due-soon and overdue loan sets on demand. It only
// computes; delivering reminders to people is someone else's job.
package notify

import (
	"errors"
	"fmt"
	"time"

	"libcirc/pkg/domain"
	"libcirc/pkg/store"
)

// Config holds notification query settings. Now defaults to time.Now.
type Config struct {
	Store store.Store
	Now   func() time.Time
}

// Service answers due-soon and overdue queries.
type Service struct {
	store store.Store
	now   func() time.Time
}

// New constructs the notification query service.
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

// DueSoon lists open loans due between today and today+withinDays,
// inclusive on both ends, joined with their book and member.
func (s *Service) DueSoon(withinDays int) ([]domain.LoanDetail, error) {
	if withinDays < 0 {
		withinDays = 0
	}
	today := domain.DateOf(s.now())
	loans, err := s.store.OpenLoansDueWithin(today, today.AddDate(0, 0, withinDays))
	if err != nil {
		return nil, fmt.Errorf("fetch due loans: %w", err)
	}
	return s.assemble(loans)
}

// Overdue lists open loans whose due date is strictly before today,
// joined with their book and member.
func (s *Service) Overdue() ([]domain.LoanDetail, error) {
	today := domain.DateOf(s.now())
	loans, err := s.store.OverdueLoans(today)
	if err != nil {
		return nil, fmt.Errorf("fetch overdue loans: %w", err)
	}
	return s.assemble(loans)
}

func (s *Service) assemble(loans []domain.Loan) ([]domain.LoanDetail, error) {
	details := make([]domain.LoanDetail, 0, len(loans))
	for _, l := range loans {
		book, ok, err := s.store.GetBook(l.BookID)
		if err != nil {
			return nil, fmt.Errorf("fetch book: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: book %s referenced by loan %s", domain.ErrNotFound, l.BookID, l.ID)
		}
		member, ok, err := s.store.GetMember(l.MemberID)
		if err != nil {
			return nil, fmt.Errorf("fetch member: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: member %s referenced by loan %s", domain.ErrNotFound, l.MemberID, l.ID)
		}
		details = append(details, domain.LoanDetail{Loan: l, Book: book, Member: member})
	}
	return details, nil
}
