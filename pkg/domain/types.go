package domain

import "time"

// Role classifies what a signed-in user is allowed to do. Authorization
// decisions themselves live in the presentation layer; the engine only
// reports the role.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleLibrarian Role = "Librarian"
	RoleMember    Role = "Member"
)

// Book is a single physical copy in the inventory. Available mirrors the
// loan state: false exactly while one open loan references the book.
type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	ISBN          string    `json:"isbn,omitempty"`
	Genre         string    `json:"genre,omitempty"`
	Available     bool      `json:"available"`
	AttachmentKey string    `json:"attachmentKey,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Member is a registered borrower. Email and phone are optional contact
// details and are not guaranteed unique.
type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Loan records one lending of a book to a member. All three dates are
// calendar days (UTC midnight). ReturnedOn is nil while the loan is open;
// Fine is fixed once the return is recorded.
type Loan struct {
	ID         string     `json:"id"`
	BookID     string     `json:"bookId"`
	MemberID   string     `json:"memberId"`
	IssuedOn   time.Time  `json:"issuedOn"`
	DueOn      time.Time  `json:"dueOn"`
	ReturnedOn *time.Time `json:"returnedOn,omitempty"`
	Fine       float64    `json:"fine"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Open reports whether the book is still out.
func (l Loan) Open() bool {
	return l.ReturnedOn == nil
}

// User is a credential record for someone operating the system.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	FullName     string    `json:"fullName,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// LoanDetail joins a loan with its book and member, as produced by the
// notification queries.
type LoanDetail struct {
	Loan   Loan   `json:"loan"`
	Book   Book   `json:"book"`
	Member Member `json:"member"`
}

// DateOf truncates t to its UTC calendar day. Loan date arithmetic (due
// dates, fines) works on values produced by this function so that a day
// difference is always a whole number of 24h periods.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
