package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"libcirc/pkg/domain"
)

// GormStore implements Store on GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the database and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&BookModel{}, &MemberModel{}, &LoanModel{}, &UserModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Atomically runs fn inside a database transaction.
func (s *GormStore) Atomically(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// mapErr turns Postgres unique violations into domain.ErrConflict.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// CreateBook inserts a new book.
func (s *GormStore) CreateBook(b domain.Book) error {
	model := bookToModel(b)
	return mapErr(s.db.Create(&model).Error)
}

// GetBook retrieves a book by ID.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// UpdateBook overwrites all book columns.
func (s *GormStore) UpdateBook(b domain.Book) error {
	model := bookToModel(b)
	// Save with a full struct so false/empty values are written too.
	return mapErr(s.db.Model(&BookModel{}).Where("id = ?", b.ID).
		Select("*").Omit("id", "created_at").Updates(&model).Error)
}

// DeleteBook removes a book row.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Delete(&BookModel{}, "id = ?", id).Error
}

// SearchBooks runs a filtered, paginated search ordered by title.
func (s *GormStore) SearchBooks(q BookQuery) ([]domain.Book, error) {
	tx := s.db.Model(&BookModel{})
	if q.Text != "" {
		like := "%" + strings.ToLower(q.Text) + "%"
		switch q.Field {
		case FieldAll:
			tx = tx.Where(
				"LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR LOWER(COALESCE(isbn, '')) LIKE ?",
				like, like, like,
			)
		case FieldAuthor:
			tx = tx.Where("LOWER(author) LIKE ?", like)
		case FieldISBN:
			tx = tx.Where("LOWER(COALESCE(isbn, '')) LIKE ?", like)
		case FieldGenre:
			tx = tx.Where("LOWER(genre) LIKE ?", like)
		default:
			tx = tx.Where("LOWER(title) LIKE ?", like)
		}
	}
	if q.Genre != "" {
		tx = tx.Where("genre = ?", q.Genre)
	}
	if q.Available != nil {
		tx = tx.Where("available = ?", *q.Available)
	}
	tx = tx.Order("title ASC, id ASC").Offset(q.Offset)
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var models []BookModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	books := make([]domain.Book, 0, len(models))
	for _, m := range models {
		books = append(books, bookFromModel(m))
	}
	return books, nil
}

// AvailableBooks lists available books in insertion order.
func (s *GormStore) AvailableBooks(genres []string, limit int) ([]domain.Book, error) {
	tx := s.db.Model(&BookModel{}).Where("available = ?", true)
	if len(genres) > 0 {
		tx = tx.Where("genre IN ?", genres)
	}
	tx = tx.Order("created_at ASC, id ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var models []BookModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	books := make([]domain.Book, 0, len(models))
	for _, m := range models {
		books = append(books, bookFromModel(m))
	}
	return books, nil
}

// CreateMember inserts a new member.
func (s *GormStore) CreateMember(m domain.Member) error {
	model := memberToModel(m)
	return mapErr(s.db.Create(&model).Error)
}

// GetMember retrieves a member by ID.
func (s *GormStore) GetMember(id string) (domain.Member, bool, error) {
	var model MemberModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Member{}, false, nil
		}
		return domain.Member{}, false, err
	}
	return memberFromModel(model), true, nil
}

// UpdateMember overwrites all member columns.
func (s *GormStore) UpdateMember(m domain.Member) error {
	model := memberToModel(m)
	return mapErr(s.db.Model(&MemberModel{}).Where("id = ?", m.ID).
		Select("*").Omit("id", "created_at").Updates(&model).Error)
}

// DeleteMember removes a member row.
func (s *GormStore) DeleteMember(id string) error {
	return s.db.Delete(&MemberModel{}, "id = ?", id).Error
}

// SearchMembers searches name or email substrings, ordered by name.
func (s *GormStore) SearchMembers(q MemberQuery) ([]domain.Member, error) {
	tx := s.db.Model(&MemberModel{})
	if q.Text != "" {
		like := "%" + strings.ToLower(q.Text) + "%"
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	tx = tx.Order("name ASC, id ASC").Offset(q.Offset)
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var models []MemberModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	members := make([]domain.Member, 0, len(models))
	for _, m := range models {
		members = append(members, memberFromModel(m))
	}
	return members, nil
}

// CreateLoan inserts a new loan.
func (s *GormStore) CreateLoan(l domain.Loan) error {
	model := loanToModel(l)
	return mapErr(s.db.Create(&model).Error)
}

// GetLoan retrieves a loan by ID.
func (s *GormStore) GetLoan(id string) (domain.Loan, bool, error) {
	var model LoanModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Loan{}, false, nil
		}
		return domain.Loan{}, false, err
	}
	return loanFromModel(model), true, nil
}

// UpdateLoan overwrites all loan columns.
func (s *GormStore) UpdateLoan(l domain.Loan) error {
	model := loanToModel(l)
	return mapErr(s.db.Model(&LoanModel{}).Where("id = ?", l.ID).
		Select("*").Omit("id", "created_at").Updates(&model).Error)
}

// OpenLoanForBook finds the open loan for a book, if any.
func (s *GormStore) OpenLoanForBook(bookID string) (domain.Loan, bool, error) {
	var model LoanModel
	err := s.db.Where("book_id = ? AND returned_on IS NULL", bookID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Loan{}, false, nil
		}
		return domain.Loan{}, false, err
	}
	return loanFromModel(model), true, nil
}

// LoansByMember lists all loans of a member in creation order.
func (s *GormStore) LoansByMember(memberID string) ([]domain.Loan, error) {
	var models []LoanModel
	err := s.db.Where("member_id = ?", memberID).
		Order("created_at ASC, id ASC").Find(&models).Error
	if err != nil {
		return nil, err
	}
	loans := make([]domain.Loan, 0, len(models))
	for _, m := range models {
		loans = append(loans, loanFromModel(m))
	}
	return loans, nil
}

// GenresBorrowedByMember returns loaned book genres in loan creation order.
func (s *GormStore) GenresBorrowedByMember(memberID string) ([]string, error) {
	var genres []string
	err := s.db.Table("loans").
		Joins("JOIN books ON books.id = loans.book_id").
		Where("loans.member_id = ?", memberID).
		Order("loans.created_at ASC, loans.id ASC").
		Pluck("books.genre", &genres).Error
	if err != nil {
		return nil, err
	}
	return genres, nil
}

// OpenLoansDueWithin lists open loans due in the inclusive date window.
func (s *GormStore) OpenLoansDueWithin(from, to time.Time) ([]domain.Loan, error) {
	var models []LoanModel
	err := s.db.Where("returned_on IS NULL AND due_on >= ? AND due_on <= ?",
		datatypes.Date(from), datatypes.Date(to)).
		Order("due_on ASC, id ASC").Find(&models).Error
	if err != nil {
		return nil, err
	}
	loans := make([]domain.Loan, 0, len(models))
	for _, m := range models {
		loans = append(loans, loanFromModel(m))
	}
	return loans, nil
}

// OverdueLoans lists open loans already past due as of the given day.
func (s *GormStore) OverdueLoans(asOf time.Time) ([]domain.Loan, error) {
	var models []LoanModel
	err := s.db.Where("returned_on IS NULL AND due_on < ?", datatypes.Date(asOf)).
		Order("due_on ASC, id ASC").Find(&models).Error
	if err != nil {
		return nil, err
	}
	loans := make([]domain.Loan, 0, len(models))
	for _, m := range models {
		loans = append(loans, loanFromModel(m))
	}
	return loans, nil
}

// CreateUser inserts a new credential record.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	return mapErr(s.db.Create(&model).Error)
}

// GetUser retrieves a user by ID.
func (s *GormStore) GetUser(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByUsername retrieves a user by username, active or not.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UpdateUser overwrites all user columns.
func (s *GormStore) UpdateUser(u domain.User) error {
	model := userToModel(u)
	return mapErr(s.db.Model(&UserModel{}).Where("id = ?", u.ID).
		Select("*").Omit("id", "created_at").Updates(&model).Error)
}

// CountBooks returns the total number of books.
func (s *GormStore) CountBooks() (int64, error) {
	return s.count(s.db.Model(&BookModel{}))
}

// CountAvailableBooks returns the number of books not on loan.
func (s *GormStore) CountAvailableBooks() (int64, error) {
	return s.count(s.db.Model(&BookModel{}).Where("available = ?", true))
}

// CountActiveMembers returns the number of active members.
func (s *GormStore) CountActiveMembers() (int64, error) {
	return s.count(s.db.Model(&MemberModel{}).Where("active = ?", true))
}

// CountOpenLoans returns the number of loans not yet returned.
func (s *GormStore) CountOpenLoans() (int64, error) {
	return s.count(s.db.Model(&LoanModel{}).Where("returned_on IS NULL"))
}

// CountOverdueLoans returns the number of open loans past due.
func (s *GormStore) CountOverdueLoans(asOf time.Time) (int64, error) {
	return s.count(s.db.Model(&LoanModel{}).
		Where("returned_on IS NULL AND due_on < ?", datatypes.Date(asOf)))
}

func (s *GormStore) count(tx *gorm.DB) (int64, error) {
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// MostBorrowedBooks returns the top books by total loan count.
func (s *GormStore) MostBorrowedBooks(limit int) ([]BorrowCount, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []BorrowCount
	err := s.db.Table("loans").
		Select("loans.book_id AS book_id, books.title AS title, COUNT(loans.id) AS count").
		Joins("JOIN books ON books.id = loans.book_id").
		Group("loans.book_id, books.title").
		Order("count DESC, title ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
