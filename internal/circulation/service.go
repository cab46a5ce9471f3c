// Package circulation implements the loan state machine: issuing books,
// recording returns and computing late fines.
package circulation

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"libcirc/internal/events"
	"libcirc/internal/util"
	"libcirc/pkg/domain"
	"libcirc/pkg/store"
)

// Config holds circulation service settings. Publisher is optional; Now
// defaults to time.Now and exists so tests can drive the calendar.
type Config struct {
	Store      store.Store
	LoanDays   int
	FinePerDay float64
	Publisher  events.Publisher
	Now        func() time.Time
}

// Service is the circulation engine.
type Service struct {
	store      store.Store
	loanDays   int
	finePerDay float64
	publisher  events.Publisher
	now        func() time.Time
}

// New constructs the circulation service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	loanDays := cfg.LoanDays
	if loanDays <= 0 {
		loanDays = 14
	}
	finePerDay := cfg.FinePerDay
	if finePerDay <= 0 {
		finePerDay = 1.0
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:      cfg.Store,
		loanDays:   loanDays,
		finePerDay: finePerDay,
		publisher:  cfg.Publisher,
		now:        now,
	}, nil
}

func (s *Service) today() time.Time {
	return domain.DateOf(s.now())
}

// IssueBook lends a book to a member for the configured loan period.
func (s *Service) IssueBook(bookID, memberID string) (domain.Loan, error) {
	return s.IssueBookForDays(bookID, memberID, s.loanDays)
}

// IssueBookForDays lends a book for an explicit number of days. The
// availability check, the loan insert and the availability flip happen in
// one atomic unit: a failed issue leaves no trace.
func (s *Service) IssueBookForDays(bookID, memberID string, days int) (domain.Loan, error) {
	if days <= 0 {
		days = s.loanDays
	}
	var loan domain.Loan
	err := s.store.Atomically(func(tx store.Store) error {
		book, ok, err := tx.GetBook(bookID)
		if err != nil {
			return fmt.Errorf("fetch book: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: book %s", domain.ErrNotFound, bookID)
		}
		if _, ok, err := tx.GetMember(memberID); err != nil {
			return fmt.Errorf("fetch member: %w", err)
		} else if !ok {
			return fmt.Errorf("%w: member %s", domain.ErrNotFound, memberID)
		}
		if !book.Available {
			return fmt.Errorf("%w: book %s", domain.ErrNotAvailable, bookID)
		}
		today := s.today()
		loan = domain.Loan{
			ID:        util.NewID(),
			BookID:    bookID,
			MemberID:  memberID,
			IssuedOn:  today,
			DueOn:     today.AddDate(0, 0, days),
			CreatedAt: s.now().UTC(),
		}
		if err := tx.CreateLoan(loan); err != nil {
			return fmt.Errorf("create loan: %w", err)
		}
		book.Available = false
		if err := tx.UpdateBook(book); err != nil {
			return fmt.Errorf("flip availability: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Loan{}, err
	}
	slog.Info("book issued", "loanId", loan.ID, "bookId", bookID, "memberId", memberID, "dueOn", loan.DueOn)
	if s.publisher != nil {
		if err := s.publisher.PublishIssued(events.BookIssued{
			LoanID:   loan.ID,
			BookID:   loan.BookID,
			MemberID: loan.MemberID,
			IssuedOn: loan.IssuedOn,
			DueOn:    loan.DueOn,
		}); err != nil {
			slog.Warn("publish issued event failed", "loanId", loan.ID, "error", err)
		}
	}
	return loan, nil
}

// ReturnBook closes an open loan, computes the fine for late returns and
// makes the book available again, all in one atomic unit. A loan due today
// returns fine-free; each full calendar day past due costs finePerDay.
func (s *Service) ReturnBook(loanID string) (domain.Loan, error) {
	var loan domain.Loan
	err := s.store.Atomically(func(tx store.Store) error {
		l, ok, err := tx.GetLoan(loanID)
		if err != nil {
			return fmt.Errorf("fetch loan: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: loan %s", domain.ErrNotFound, loanID)
		}
		if !l.Open() {
			return fmt.Errorf("%w: loan %s", domain.ErrAlreadyReturned, loanID)
		}
		today := s.today()
		l.ReturnedOn = &today
		if today.After(l.DueOn) {
			daysLate := int(today.Sub(l.DueOn).Hours() / 24)
			l.Fine = float64(daysLate) * s.finePerDay
		}
		if err := tx.UpdateLoan(l); err != nil {
			return fmt.Errorf("update loan: %w", err)
		}
		book, ok, err := tx.GetBook(l.BookID)
		if err != nil {
			return fmt.Errorf("fetch book: %w", err)
		}
		if ok {
			book.Available = true
			if err := tx.UpdateBook(book); err != nil {
				return fmt.Errorf("flip availability: %w", err)
			}
		}
		loan = l
		return nil
	})
	if err != nil {
		return domain.Loan{}, err
	}
	slog.Info("book returned", "loanId", loan.ID, "bookId", loan.BookID, "fine", loan.Fine)
	if s.publisher != nil {
		if err := s.publisher.PublishReturned(events.BookReturned{
			LoanID:     loan.ID,
			BookID:     loan.BookID,
			MemberID:   loan.MemberID,
			ReturnedOn: *loan.ReturnedOn,
			Fine:       loan.Fine,
		}); err != nil {
			slog.Warn("publish returned event failed", "loanId", loan.ID, "error", err)
		}
	}
	return loan, nil
}

// GetLoan retrieves a single loan.
func (s *Service) GetLoan(id string) (domain.Loan, error) {
	loan, ok, err := s.store.GetLoan(id)
	if err != nil {
		return domain.Loan{}, fmt.Errorf("fetch loan: %w", err)
	}
	if !ok {
		return domain.Loan{}, fmt.Errorf("%w: loan %s", domain.ErrNotFound, id)
	}
	return loan, nil
}

// LoansByMember lists a member's full loan history in creation order.
func (s *Service) LoansByMember(memberID string) ([]domain.Loan, error) {
	loans, err := s.store.LoansByMember(memberID)
	if err != nil {
		return nil, fmt.Errorf("fetch loans: %w", err)
	}
	return loans, nil
}
