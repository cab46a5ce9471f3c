// Package membership manages borrower records: CRUD plus name/contact
// search.
package membership

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

// Config holds membership service settings.
type Config struct {
	Store    store.Store
	PageSize int
}

// Service is the membership registry.
type Service struct {
	store    store.Store
	pageSize int
}

// New constructs the membership service.
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

// MemberInput carries the caller-editable member fields.
type MemberInput struct {
	Name  string
	Email string
	Phone string
}

func (in MemberInput) normalize() MemberInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

// AddMember registers a new, active member.
func (s *Service) AddMember(in MemberInput) (domain.Member, error) {
	in = in.normalize()
	if in.Name == "" {
		return domain.Member{}, fmt.Errorf("%w: name required", domain.ErrValidation)
	}
	member := domain.Member{
		ID:        util.NewID(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateMember(member); err != nil {
		return domain.Member{}, fmt.Errorf("create member: %w", err)
	}
	slog.Info("member added", "memberId", member.ID, "name", member.Name)
	return member, nil
}

// UpdateMember replaces the editable fields of an existing member.
func (s *Service) UpdateMember(id string, in MemberInput) (domain.Member, error) {
	in = in.normalize()
	if in.Name == "" {
		return domain.Member{}, fmt.Errorf("%w: name required", domain.ErrValidation)
	}
	var updated domain.Member
	err := s.store.Atomically(func(tx store.Store) error {
		member, ok, err := tx.GetMember(id)
		if err != nil {
			return fmt.Errorf("fetch member: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: member %s", domain.ErrNotFound, id)
		}
		member.Name = in.Name
		member.Email = in.Email
		member.Phone = in.Phone
		if err := tx.UpdateMember(member); err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		updated = member
		return nil
	})
	if err != nil {
		return domain.Member{}, err
	}
	return updated, nil
}

// SetActive flips a member's active flag.
func (s *Service) SetActive(id string, active bool) (domain.Member, error) {
	var updated domain.Member
	err := s.store.Atomically(func(tx store.Store) error {
		member, ok, err := tx.GetMember(id)
		if err != nil {
			return fmt.Errorf("fetch member: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: member %s", domain.ErrNotFound, id)
		}
		member.Active = active
		if err := tx.UpdateMember(member); err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		updated = member
		return nil
	})
	if err != nil {
		return domain.Member{}, err
	}
	return updated, nil
}

// DeleteMember removes a member. A member with open loans cannot be deleted.
func (s *Service) DeleteMember(id string) error {
	return s.store.Atomically(func(tx store.Store) error {
		_, ok, err := tx.GetMember(id)
		if err != nil {
			return fmt.Errorf("fetch member: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: member %s", domain.ErrNotFound, id)
		}
		loans, err := tx.LoansByMember(id)
		if err != nil {
			return fmt.Errorf("fetch loans: %w", err)
		}
		for _, l := range loans {
			if l.Open() {
				return fmt.Errorf("%w: member %s has an open loan", domain.ErrConflict, id)
			}
		}
		if err := tx.DeleteMember(id); err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		return nil
	})
}

// GetMember retrieves a single member.
func (s *Service) GetMember(id string) (domain.Member, error) {
	member, ok, err := s.store.GetMember(id)
	if err != nil {
		return domain.Member{}, fmt.Errorf("fetch member: %w", err)
	}
	if !ok {
		return domain.Member{}, fmt.Errorf("%w: member %s", domain.ErrNotFound, id)
	}
	return member, nil
}

// SearchMembers matches name or email substrings, ordered by name and
// paginated by offset/limit. A zero limit uses the configured page size.
func (s *Service) SearchMembers(text string, offset, limit int) ([]domain.Member, error) {
	if limit <= 0 {
		limit = s.pageSize
	}
	if offset < 0 {
		offset = 0
	}
	members, err := s.store.SearchMembers(store.MemberQuery{
		Text:   strings.TrimSpace(text),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search members: %w", err)
	}
	return members, nil
}
