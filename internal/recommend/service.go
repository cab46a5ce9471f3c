// Package recommend scores currently-available books against a member's
// borrowing history. Read-only; no state is touched.
package recommend

import (
	"errors"
	"fmt"
	"sort"

	"libcirc/pkg/domain"
	"libcirc/pkg/store"
)

const (
	topGenres    = 3
	defaultLimit = 5
)

// Config holds recommendation service settings.
type Config struct {
	Store store.Store
}

// Service is the recommendation engine.
type Service struct {
	store store.Store
}

// New constructs the recommendation service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	return &Service{store: cfg.Store}, nil
}

// Recommend returns up to limit available books matching the member's top
// borrowed genres. Members with no genre history get the first available
// books instead. Genre ranking is by loan count descending; ties break
// alphabetically so results do not depend on storage order.
func (s *Service) Recommend(memberID string, limit int) ([]domain.Book, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	genres, err := s.store.GenresBorrowedByMember(memberID)
	if err != nil {
		return nil, fmt.Errorf("fetch loan genres: %w", err)
	}
	preferred := preferredGenres(genres)
	books, err := s.store.AvailableBooks(preferred, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch available books: %w", err)
	}
	return books, nil
}

func preferredGenres(genres []string) []string {
	counts := make(map[string]int)
	for _, g := range genres {
		if g != "" {
			counts[g]++
		}
	}
	if len(counts) == 0 {
		return nil
	}
	ranked := make([]string, 0, len(counts))
	for g := range counts {
		ranked = append(ranked, g)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > topGenres {
		ranked = ranked[:topGenres]
	}
	return ranked
}
