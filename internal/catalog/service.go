// Package catalog manages the book inventory: CRUD plus filtered,
// paginated search.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"libcirc/internal/util"
	"libcirc/pkg/domain"
	"libcirc/pkg/store"
)

// Config holds catalog service settings.
type Config struct {
	Store    store.Store
	PageSize int
}

// Service is the inventory catalog.
type Service struct {
	store    store.Store
	pageSize int
}

// New constructs the catalog service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}
	return &Service{store: cfg.Store, pageSize: pageSize}, nil
}

// BookInput carries the caller-editable book fields.
type BookInput struct {
	Title  string
	Author string
	ISBN   string
	Genre  string
}

func (in BookInput) normalize() BookInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.Genre = strings.TrimSpace(in.Genre)
	return in
}

func (in BookInput) validate() error {
	if in.Title == "" {
		return fmt.Errorf("%w: title required", domain.ErrValidation)
	}
	if in.Author == "" {
		return fmt.Errorf("%w: author required", domain.ErrValidation)
	}
	return nil
}

// AddBook registers a new book; it starts out available.
func (s *Service) AddBook(in BookInput) (domain.Book, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return domain.Book{}, err
	}
	book := domain.Book{
		ID:        util.NewID(),
		Title:     in.Title,
		Author:    in.Author,
		ISBN:      in.ISBN,
		Genre:     in.Genre,
		Available: true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("create book: %w", err)
	}
	slog.Info("book added", "bookId", book.ID, "title", book.Title)
	return book, nil
}

// UpdateBook replaces the editable fields of an existing book. Availability
// and attachment are managed elsewhere and stay untouched.
func (s *Service) UpdateBook(id string, in BookInput) (domain.Book, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return domain.Book{}, err
	}
	var updated domain.Book
	err := s.store.Atomically(func(tx store.Store) error {
		book, ok, err := tx.GetBook(id)
		if err != nil {
			return fmt.Errorf("fetch book: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: book %s", domain.ErrNotFound, id)
		}
		book.Title = in.Title
		book.Author = in.Author
		book.ISBN = in.ISBN
		book.Genre = in.Genre
		if err := tx.UpdateBook(book); err != nil {
			return fmt.Errorf("update book: %w", err)
		}
		updated = book
		return nil
	})
	if err != nil {
		return domain.Book{}, err
	}
	return updated, nil
}

// DeleteBook removes a book. A book with an open loan cannot be deleted.
func (s *Service) DeleteBook(id string) error {
	return s.store.Atomically(func(tx store.Store) error {
		_, ok, err := tx.GetBook(id)
		if err != nil {
			return fmt.Errorf("fetch book: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: book %s", domain.ErrNotFound, id)
		}
		if _, open, err := tx.OpenLoanForBook(id); err != nil {
			return fmt.Errorf("check open loan: %w", err)
		} else if open {
			return fmt.Errorf("%w: book %s has an open loan", domain.ErrConflict, id)
		}
		if err := tx.DeleteBook(id); err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		return nil
	})
}

// GetBook retrieves a single book.
func (s *Service) GetBook(id string) (domain.Book, error) {
	book, ok, err := s.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, fmt.Errorf("%w: book %s", domain.ErrNotFound, id)
	}
	return book, nil
}

// SearchParams describes a catalog search. Field is matched against the
// allow-list; unknown names search the title. A zero Limit uses the
// configured page size.
type SearchParams struct {
	Text      string
	Field     string
	Genre     string
	Available *bool
	Offset    int
	Limit     int
}

// SearchBooks runs a filtered search ordered by title, paginated by
// offset/limit.
func (s *Service) SearchBooks(p SearchParams) ([]domain.Book, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	field := store.FieldAll
	if p.Field != "" {
		field = store.NormalizeField(p.Field)
	}
	books, err := s.store.SearchBooks(store.BookQuery{
		Text:      strings.TrimSpace(p.Text),
		Field:     field,
		Genre:     strings.TrimSpace(p.Genre),
		Available: p.Available,
		Offset:    offset,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return books, nil
}
