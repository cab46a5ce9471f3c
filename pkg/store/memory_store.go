package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"libcirc/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs tests and small
// single-user deployments; the semantics (insertion order, uniqueness,
// transactional rollback) match the Postgres store.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memData
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

// Atomically runs fn against a snapshot and publishes it only on success,
// so a failed unit of work leaves no partial state behind.
func (m *MemoryStore) Atomically(fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.data.clone()
	if err := fn(&memTx{data: snapshot}); err != nil {
		return err
	}
	m.data = snapshot
	return nil
}

func (m *MemoryStore) CreateBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.createBook(b)
}

func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getBook(id)
}

func (m *MemoryStore) UpdateBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.updateBook(b)
}

func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.deleteBook(id)
}

func (m *MemoryStore) SearchBooks(q BookQuery) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.searchBooks(q)
}

func (m *MemoryStore) AvailableBooks(genres []string, limit int) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.availableBooks(genres, limit)
}

func (m *MemoryStore) CreateMember(mm domain.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.createMember(mm)
}

func (m *MemoryStore) GetMember(id string) (domain.Member, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getMember(id)
}

func (m *MemoryStore) UpdateMember(mm domain.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.updateMember(mm)
}

func (m *MemoryStore) DeleteMember(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.deleteMember(id)
}

func (m *MemoryStore) SearchMembers(q MemberQuery) ([]domain.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.searchMembers(q)
}

func (m *MemoryStore) CreateLoan(l domain.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.createLoan(l)
}

func (m *MemoryStore) GetLoan(id string) (domain.Loan, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getLoan(id)
}

func (m *MemoryStore) UpdateLoan(l domain.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.updateLoan(l)
}

func (m *MemoryStore) OpenLoanForBook(bookID string) (domain.Loan, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.openLoanForBook(bookID)
}

func (m *MemoryStore) LoansByMember(memberID string) ([]domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.loansByMember(memberID)
}

func (m *MemoryStore) GenresBorrowedByMember(memberID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.genresBorrowedByMember(memberID)
}

func (m *MemoryStore) OpenLoansDueWithin(from, to time.Time) ([]domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.openLoansDueWithin(from, to)
}

func (m *MemoryStore) OverdueLoans(asOf time.Time) ([]domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.overdueLoans(asOf)
}

func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.createUser(u)
}

func (m *MemoryStore) GetUser(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getUser(id)
}

func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getUserByUsername(username)
}

func (m *MemoryStore) UpdateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.updateUser(u)
}

func (m *MemoryStore) CountBooks() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data.books)), nil
}

func (m *MemoryStore) CountAvailableBooks() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.countAvailableBooks()
}

func (m *MemoryStore) CountActiveMembers() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.countActiveMembers()
}

func (m *MemoryStore) CountOpenLoans() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.countOpenLoans()
}

func (m *MemoryStore) CountOverdueLoans(asOf time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.countOverdueLoans(asOf)
}

func (m *MemoryStore) MostBorrowedBooks(limit int) ([]BorrowCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.mostBorrowedBooks(limit)
}

// memTx is the view handed to Atomically callbacks. The snapshot is private
// to the transaction, so no locking is needed.
type memTx struct {
	data *memData
}

// Atomically on an open transaction just joins it.
func (t *memTx) Atomically(fn func(Store) error) error { return fn(t) }

func (t *memTx) CreateBook(b domain.Book) error                   { return t.data.createBook(b) }
func (t *memTx) GetBook(id string) (domain.Book, bool, error)     { return t.data.getBook(id) }
func (t *memTx) UpdateBook(b domain.Book) error                   { return t.data.updateBook(b) }
func (t *memTx) DeleteBook(id string) error                       { return t.data.deleteBook(id) }
func (t *memTx) SearchBooks(q BookQuery) ([]domain.Book, error)   { return t.data.searchBooks(q) }
func (t *memTx) CreateMember(m domain.Member) error               { return t.data.createMember(m) }
func (t *memTx) GetMember(id string) (domain.Member, bool, error) { return t.data.getMember(id) }
func (t *memTx) UpdateMember(m domain.Member) error               { return t.data.updateMember(m) }
func (t *memTx) DeleteMember(id string) error                     { return t.data.deleteMember(id) }
func (t *memTx) CreateLoan(l domain.Loan) error                   { return t.data.createLoan(l) }
func (t *memTx) GetLoan(id string) (domain.Loan, bool, error)     { return t.data.getLoan(id) }
func (t *memTx) UpdateLoan(l domain.Loan) error                   { return t.data.updateLoan(l) }
func (t *memTx) CreateUser(u domain.User) error                   { return t.data.createUser(u) }
func (t *memTx) GetUser(id string) (domain.User, bool, error)     { return t.data.getUser(id) }
func (t *memTx) UpdateUser(u domain.User) error                   { return t.data.updateUser(u) }
func (t *memTx) CountBooks() (int64, error)                       { return int64(len(t.data.books)), nil }
func (t *memTx) CountAvailableBooks() (int64, error)              { return t.data.countAvailableBooks() }
func (t *memTx) CountActiveMembers() (int64, error)               { return t.data.countActiveMembers() }
func (t *memTx) CountOpenLoans() (int64, error)                   { return t.data.countOpenLoans() }

func (t *memTx) AvailableBooks(genres []string, limit int) ([]domain.Book, error) {
	return t.data.availableBooks(genres, limit)
}

func (t *memTx) SearchMembers(q MemberQuery) ([]domain.Member, error) {
	return t.data.searchMembers(q)
}

func (t *memTx) OpenLoanForBook(bookID string) (domain.Loan, bool, error) {
	return t.data.openLoanForBook(bookID)
}

func (t *memTx) LoansByMember(memberID string) ([]domain.Loan, error) {
	return t.data.loansByMember(memberID)
}

func (t *memTx) GenresBorrowedByMember(memberID string) ([]string, error) {
	return t.data.genresBorrowedByMember(memberID)
}

func (t *memTx) OpenLoansDueWithin(from, to time.Time) ([]domain.Loan, error) {
	return t.data.openLoansDueWithin(from, to)
}

func (t *memTx) OverdueLoans(asOf time.Time) ([]domain.Loan, error) {
	return t.data.overdueLoans(asOf)
}

func (t *memTx) GetUserByUsername(username string) (domain.User, bool, error) {
	return t.data.getUserByUsername(username)
}

func (t *memTx) CountOverdueLoans(asOf time.Time) (int64, error) {
	return t.data.countOverdueLoans(asOf)
}

func (t *memTx) MostBorrowedBooks(limit int) ([]BorrowCount, error) {
	return t.data.mostBorrowedBooks(limit)
}

// memData holds the actual records plus insertion order and uniqueness
// indexes.
type memData struct {
	books     map[string]domain.Book
	bookOrder []string
	isbnIndex map[string]string // isbn -> book ID

	members     map[string]domain.Member
	memberOrder []string

	loans     map[string]domain.Loan
	loanOrder []string

	users     map[string]domain.User
	usernames map[string]string // username -> user ID
}

func newMemData() *memData {
	return &memData{
		books:     make(map[string]domain.Book),
		isbnIndex: make(map[string]string),
		members:   make(map[string]domain.Member),
		loans:     make(map[string]domain.Loan),
		users:     make(map[string]domain.User),
		usernames: make(map[string]string),
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.books {
		c.books[k] = v
	}
	for k, v := range d.isbnIndex {
		c.isbnIndex[k] = v
	}
	for k, v := range d.members {
		c.members[k] = v
	}
	for k, v := range d.loans {
		c.loans[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.usernames {
		c.usernames[k] = v
	}
	c.bookOrder = append([]string(nil), d.bookOrder...)
	c.memberOrder = append([]string(nil), d.memberOrder...)
	c.loanOrder = append([]string(nil), d.loanOrder...)
	return c
}

func (d *memData) createBook(b domain.Book) error {
	if _, exists := d.books[b.ID]; exists {
		return fmt.Errorf("%w: book id %s", domain.ErrConflict, b.ID)
	}
	if b.ISBN != "" {
		if _, taken := d.isbnIndex[b.ISBN]; taken {
			return fmt.Errorf("%w: isbn %s", domain.ErrConflict, b.ISBN)
		}
		d.isbnIndex[b.ISBN] = b.ID
	}
	d.books[b.ID] = b
	d.bookOrder = append(d.bookOrder, b.ID)
	return nil
}

func (d *memData) getBook(id string) (domain.Book, bool, error) {
	b, ok := d.books[id]
	return b, ok, nil
}

func (d *memData) updateBook(b domain.Book) error {
	old, ok := d.books[b.ID]
	if !ok {
		return fmt.Errorf("%w: book %s", domain.ErrNotFound, b.ID)
	}
	if b.ISBN != old.ISBN {
		if b.ISBN != "" {
			if owner, taken := d.isbnIndex[b.ISBN]; taken && owner != b.ID {
				return fmt.Errorf("%w: isbn %s", domain.ErrConflict, b.ISBN)
			}
			d.isbnIndex[b.ISBN] = b.ID
		}
		if old.ISBN != "" {
			delete(d.isbnIndex, old.ISBN)
		}
	}
	b.CreatedAt = old.CreatedAt
	d.books[b.ID] = b
	return nil
}

func (d *memData) deleteBook(id string) error {
	b, ok := d.books[id]
	if !ok {
		return nil
	}
	if b.ISBN != "" {
		delete(d.isbnIndex, b.ISBN)
	}
	delete(d.books, id)
	d.bookOrder = removeID(d.bookOrder, id)
	return nil
}

func (d *memData) searchBooks(q BookQuery) ([]domain.Book, error) {
	text := strings.ToLower(q.Text)
	matches := make([]domain.Book, 0)
	for _, id := range d.bookOrder {
		b := d.books[id]
		if text != "" && !matchBookField(b, q.Field, text) {
			continue
		}
		if q.Genre != "" && b.Genre != q.Genre {
			continue
		}
		if q.Available != nil && b.Available != *q.Available {
			continue
		}
		matches = append(matches, b)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Title != matches[j].Title {
			return matches[i].Title < matches[j].Title
		}
		return matches[i].ID < matches[j].ID
	})
	return paginateBooks(matches, q.Offset, q.Limit), nil
}

func matchBookField(b domain.Book, field SearchField, text string) bool {
	title := strings.Contains(strings.ToLower(b.Title), text)
	author := strings.Contains(strings.ToLower(b.Author), text)
	isbn := strings.Contains(strings.ToLower(b.ISBN), text)
	genre := strings.Contains(strings.ToLower(b.Genre), text)
	switch field {
	case FieldAll:
		return title || author || isbn
	case FieldAuthor:
		return author
	case FieldISBN:
		return isbn
	case FieldGenre:
		return genre
	default:
		return title
	}
}

func (d *memData) availableBooks(genres []string, limit int) ([]domain.Book, error) {
	wanted := make(map[string]bool, len(genres))
	for _, g := range genres {
		wanted[g] = true
	}
	books := make([]domain.Book, 0)
	for _, id := range d.bookOrder {
		b := d.books[id]
		if !b.Available {
			continue
		}
		if len(wanted) > 0 && !wanted[b.Genre] {
			continue
		}
		books = append(books, b)
		if limit > 0 && len(books) == limit {
			break
		}
	}
	return books, nil
}

func (d *memData) createMember(m domain.Member) error {
	if _, exists := d.members[m.ID]; exists {
		return fmt.Errorf("%w: member id %s", domain.ErrConflict, m.ID)
	}
	d.members[m.ID] = m
	d.memberOrder = append(d.memberOrder, m.ID)
	return nil
}

func (d *memData) getMember(id string) (domain.Member, bool, error) {
	m, ok := d.members[id]
	return m, ok, nil
}

func (d *memData) updateMember(m domain.Member) error {
	old, ok := d.members[m.ID]
	if !ok {
		return fmt.Errorf("%w: member %s", domain.ErrNotFound, m.ID)
	}
	m.CreatedAt = old.CreatedAt
	d.members[m.ID] = m
	return nil
}

func (d *memData) deleteMember(id string) error {
	delete(d.members, id)
	d.memberOrder = removeID(d.memberOrder, id)
	return nil
}

func (d *memData) searchMembers(q MemberQuery) ([]domain.Member, error) {
	text := strings.ToLower(q.Text)
	matches := make([]domain.Member, 0)
	for _, id := range d.memberOrder {
		m := d.members[id]
		if text != "" &&
			!strings.Contains(strings.ToLower(m.Name), text) &&
			!strings.Contains(strings.ToLower(m.Email), text) {
			continue
		}
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].ID < matches[j].ID
	})
	return paginateMembers(matches, q.Offset, q.Limit), nil
}

func (d *memData) createLoan(l domain.Loan) error {
	if _, exists := d.loans[l.ID]; exists {
		return fmt.Errorf("%w: loan id %s", domain.ErrConflict, l.ID)
	}
	d.loans[l.ID] = l
	d.loanOrder = append(d.loanOrder, l.ID)
	return nil
}

func (d *memData) getLoan(id string) (domain.Loan, bool, error) {
	l, ok := d.loans[id]
	return l, ok, nil
}

func (d *memData) updateLoan(l domain.Loan) error {
	old, ok := d.loans[l.ID]
	if !ok {
		return fmt.Errorf("%w: loan %s", domain.ErrNotFound, l.ID)
	}
	l.CreatedAt = old.CreatedAt
	d.loans[l.ID] = l
	return nil
}

func (d *memData) openLoanForBook(bookID string) (domain.Loan, bool, error) {
	for _, id := range d.loanOrder {
		l := d.loans[id]
		if l.BookID == bookID && l.Open() {
			return l, true, nil
		}
	}
	return domain.Loan{}, false, nil
}

func (d *memData) loansByMember(memberID string) ([]domain.Loan, error) {
	loans := make([]domain.Loan, 0)
	for _, id := range d.loanOrder {
		if l := d.loans[id]; l.MemberID == memberID {
			loans = append(loans, l)
		}
	}
	return loans, nil
}

func (d *memData) genresBorrowedByMember(memberID string) ([]string, error) {
	genres := make([]string, 0)
	for _, id := range d.loanOrder {
		l := d.loans[id]
		if l.MemberID != memberID {
			continue
		}
		if b, ok := d.books[l.BookID]; ok {
			genres = append(genres, b.Genre)
		}
	}
	return genres, nil
}

func (d *memData) openLoansDueWithin(from, to time.Time) ([]domain.Loan, error) {
	loans := make([]domain.Loan, 0)
	for _, id := range d.loanOrder {
		l := d.loans[id]
		if l.Open() && !l.DueOn.Before(from) && !l.DueOn.After(to) {
			loans = append(loans, l)
		}
	}
	sortLoansByDue(loans)
	return loans, nil
}

func (d *memData) overdueLoans(asOf time.Time) ([]domain.Loan, error) {
	loans := make([]domain.Loan, 0)
	for _, id := range d.loanOrder {
		l := d.loans[id]
		if l.Open() && l.DueOn.Before(asOf) {
			loans = append(loans, l)
		}
	}
	sortLoansByDue(loans)
	return loans, nil
}

func (d *memData) createUser(u domain.User) error {
	if _, exists := d.users[u.ID]; exists {
		return fmt.Errorf("%w: user id %s", domain.ErrConflict, u.ID)
	}
	if _, taken := d.usernames[u.Username]; taken {
		return fmt.Errorf("%w: username %s", domain.ErrConflict, u.Username)
	}
	d.users[u.ID] = u
	d.usernames[u.Username] = u.ID
	return nil
}

func (d *memData) getUser(id string) (domain.User, bool, error) {
	u, ok := d.users[id]
	return u, ok, nil
}

func (d *memData) getUserByUsername(username string) (domain.User, bool, error) {
	id, ok := d.usernames[username]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := d.users[id]
	return u, ok, nil
}

func (d *memData) updateUser(u domain.User) error {
	old, ok := d.users[u.ID]
	if !ok {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, u.ID)
	}
	if u.Username != old.Username {
		if owner, taken := d.usernames[u.Username]; taken && owner != u.ID {
			return fmt.Errorf("%w: username %s", domain.ErrConflict, u.Username)
		}
		delete(d.usernames, old.Username)
		d.usernames[u.Username] = u.ID
	}
	u.CreatedAt = old.CreatedAt
	d.users[u.ID] = u
	return nil
}

func (d *memData) countAvailableBooks() (int64, error) {
	var n int64
	for _, b := range d.books {
		if b.Available {
			n++
		}
	}
	return n, nil
}

func (d *memData) countActiveMembers() (int64, error) {
	var n int64
	for _, m := range d.members {
		if m.Active {
			n++
		}
	}
	return n, nil
}

func (d *memData) countOpenLoans() (int64, error) {
	var n int64
	for _, l := range d.loans {
		if l.Open() {
			n++
		}
	}
	return n, nil
}

func (d *memData) countOverdueLoans(asOf time.Time) (int64, error) {
	var n int64
	for _, l := range d.loans {
		if l.Open() && l.DueOn.Before(asOf) {
			n++
		}
	}
	return n, nil
}

func (d *memData) mostBorrowedBooks(limit int) ([]BorrowCount, error) {
	if limit <= 0 {
		limit = 10
	}
	counts := make(map[string]int64)
	for _, l := range d.loans {
		counts[l.BookID]++
	}
	rows := make([]BorrowCount, 0, len(counts))
	for bookID, n := range counts {
		b, ok := d.books[bookID]
		if !ok {
			continue
		}
		rows = append(rows, BorrowCount{BookID: bookID, Title: b.Title, Count: n})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Title < rows[j].Title
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func removeID(ids []string, id string) []string {
	filtered := ids[:0]
	for _, item := range ids {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func sortLoansByDue(loans []domain.Loan) {
	sort.SliceStable(loans, func(i, j int) bool {
		if !loans[i].DueOn.Equal(loans[j].DueOn) {
			return loans[i].DueOn.Before(loans[j].DueOn)
		}
		return loans[i].ID < loans[j].ID
	})
}

func paginateBooks(books []domain.Book, offset, limit int) []domain.Book {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(books) {
		return []domain.Book{}
	}
	books = books[offset:]
	if limit > 0 && len(books) > limit {
		books = books[:limit]
	}
	return books
}

func paginateMembers(members []domain.Member, offset, limit int) []domain.Member {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(members) {
		return []domain.Member{}
	}
	members = members[offset:]
	if limit > 0 && len(members) > limit {
		members = members[:limit]
	}
	return members
}
