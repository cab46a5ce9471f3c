package store

import (
	"time"

	"libcirc/pkg/domain"
)

// SearchField names a column the free-text book search may match against.
// The set is closed on purpose: field names arrive from callers and must
// never be spliced into a query unchecked.
type SearchField string

const (
	FieldAll    SearchField = "all"
	FieldTitle  SearchField = "title"
	FieldAuthor SearchField = "author"
	FieldISBN   SearchField = "isbn"
	FieldGenre  SearchField = "genre"
)

// NormalizeField maps an arbitrary caller-supplied field name onto the
// allow-list. Unknown names fall back to title.
func NormalizeField(field string) SearchField {
	switch SearchField(field) {
	case FieldAll, FieldTitle, FieldAuthor, FieldISBN, FieldGenre:
		return SearchField(field)
	default:
		return FieldTitle
	}
}

// BookQuery describes a filtered, paginated book search. Results are ordered
// by title ascending.
type BookQuery struct {
	Text      string
	Field     SearchField
	Genre     string
	Available *bool
	Offset    int
	Limit     int
}

// MemberQuery describes a member search over name or email substrings.
// Results are ordered by name ascending.
type MemberQuery struct {
	Text   string
	Offset int
	Limit  int
}

// BorrowCount is one row of the most-borrowed report.
type BorrowCount struct {
	BookID string `json:"bookId"`
	Title  string `json:"title"`
	Count  int64  `json:"count"`
}

// Store is the record store adapter the engine components run against.
// Implementations must enforce uniqueness of non-empty book ISBNs and of
// usernames, surfacing violations as domain.ErrConflict.
//
// Lookups return (zero, false, nil) when the id is unknown; only genuine
// storage failures produce a non-nil error.
type Store interface {
	// Atomically runs fn as one unit of work. When fn returns an error the
	// unit is rolled back and nothing fn wrote is visible afterwards. The
	// Store passed to fn must be used instead of the receiver for every
	// access inside the unit.
	Atomically(fn func(Store) error) error

	// books
	CreateBook(b domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	UpdateBook(b domain.Book) error
	DeleteBook(id string) error
	SearchBooks(q BookQuery) ([]domain.Book, error)
	// AvailableBooks lists currently available books in store order,
	// optionally restricted to the given genres.
	AvailableBooks(genres []string, limit int) ([]domain.Book, error)

	// members
	CreateMember(m domain.Member) error
	GetMember(id string) (domain.Member, bool, error)
	UpdateMember(m domain.Member) error
	DeleteMember(id string) error
	SearchMembers(q MemberQuery) ([]domain.Member, error)

	// loans
	CreateLoan(l domain.Loan) error
	GetLoan(id string) (domain.Loan, bool, error)
	UpdateLoan(l domain.Loan) error
	OpenLoanForBook(bookID string) (domain.Loan, bool, error)
	LoansByMember(memberID string) ([]domain.Loan, error)
	// GenresBorrowedByMember returns the genre of every book the member has
	// ever loaned (open or closed), in loan creation order, empty genres
	// included.
	GenresBorrowedByMember(memberID string) ([]string, error)
	// OpenLoansDueWithin lists open loans with from <= dueOn <= to.
	OpenLoansDueWithin(from, to time.Time) ([]domain.Loan, error)
	// OverdueLoans lists open loans with dueOn < asOf.
	OverdueLoans(asOf time.Time) ([]domain.Loan, error)

	// users
	CreateUser(u domain.User) error
	GetUser(id string) (domain.User, bool, error)
	GetUserByUsername(username string) (domain.User, bool, error)
	UpdateUser(u domain.User) error

	// aggregates
	CountBooks() (int64, error)
	CountAvailableBooks() (int64, error)
	CountActiveMembers() (int64, error)
	CountOpenLoans() (int64, error)
	CountOverdueLoans(asOf time.Time) (int64, error)
	MostBorrowedBooks(limit int) ([]BorrowCount, error)
}
