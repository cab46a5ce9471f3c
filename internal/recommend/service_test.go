package recommend

import (
	"fmt"
	"testing"
	"time"

	"libcirc/pkg/domain"
	"libcirc/pkg/store"
)

func newService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	svc, err := New(Config{Store: st})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return svc, st
}

func addBook(t *testing.T, st store.Store, id, title, genre string, available bool) {
	t.Helper()
	err := st.CreateBook(domain.Book{
		ID: id, Title: title, Author: "Author", Genre: genre,
		Available: available, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateBook(%s) error: %v", id, err)
	}
}

func addClosedLoan(t *testing.T, st store.Store, id, bookID, memberID string) {
	t.Helper()
	day := domain.DateOf(time.Now())
	err := st.CreateLoan(domain.Loan{
		ID: id, BookID: bookID, MemberID: memberID,
		IssuedOn: day.AddDate(0, 0, -30), DueOn: day.AddDate(0, 0, -16),
		ReturnedOn: &day, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateLoan(%s) error: %v", id, err)
	}
}

func TestRecommendMatchesTopGenres(t *testing.T) {
	svc, st := newService(t)

	addBook(t, st, "b1", "Dune", "SciFi", false)
	addBook(t, st, "b2", "Foundation", "SciFi", true)
	addBook(t, st, "b3", "Hyperion", "SciFi", true)
	addBook(t, st, "b4", "Emma", "Romance", true)

	// Two SciFi loans make SciFi the member's top genre.
	addClosedLoan(t, st, "l1", "b1", "m1")
	addClosedLoan(t, st, "l2", "b3", "m1")

	books, err := svc.Recommend("m1", 5)
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("got %d books, want 2 available SciFi", len(books))
	}
	for _, b := range books {
		if b.Genre != "SciFi" {
			t.Errorf("recommended %q from genre %q, want SciFi", b.Title, b.Genre)
		}
		if !b.Available {
			t.Errorf("recommended unavailable book %q", b.Title)
		}
	}
}

func TestRecommendFallbackWithoutHistory(t *testing.T) {
	svc, st := newService(t)

	addBook(t, st, "b1", "Dune", "SciFi", true)
	addBook(t, st, "b2", "Emma", "Romance", true)
	addBook(t, st, "b3", "Ulysses", "Classic", false)

	books, err := svc.Recommend("newcomer", 5)
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("fallback: got %d books, want 2 available", len(books))
	}
}

func TestRecommendHonorsLimit(t *testing.T) {
	svc, st := newService(t)
	for i := 0; i < 8; i++ {
		addBook(t, st, fmt.Sprintf("b%d", i), fmt.Sprintf("Book %d", i), "SciFi", true)
	}
	books, err := svc.Recommend("newcomer", 3)
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}
	if len(books) != 3 {
		t.Errorf("got %d books, want 3", len(books))
	}
}

func TestPreferredGenres(t *testing.T) {
	// Counts rank first, then the alphabet breaks ties, and only the top
	// three genres survive.
	got := preferredGenres([]string{"SciFi", "Romance", "SciFi", "Classic", "Romance", "Horror", "SciFi", "Classic"})
	want := []string{"SciFi", "Classic", "Romance"}
	if len(got) != len(want) {
		t.Fatalf("preferredGenres = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("preferredGenres = %v, want %v", got, want)
		}
	}

	if got := preferredGenres(nil); got != nil {
		t.Errorf("preferredGenres(nil) = %v, want nil", got)
	}
	if got := preferredGenres([]string{"", ""}); got != nil {
		t.Errorf("blank genres should not count: got %v", got)
	}
}
