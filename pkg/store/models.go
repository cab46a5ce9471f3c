package store

import (
	"time"

	"gorm.io/datatypes"

	"libcirc/pkg/domain"
)

// GORM models used for persistence. Loan dates are calendar days, so they
// map to date columns rather than timestamps.
type BookModel struct {
	ID            string  `gorm:"primaryKey"`
	Title         string  `gorm:"not null;index"`
	Author        string  `gorm:"not null;index"`
	ISBN          *string `gorm:"uniqueIndex"`
	Genre         string  `gorm:"index"`
	Available     bool    `gorm:"not null;index"`
	AttachmentKey string
	CreatedAt     time.Time `gorm:"not null"`
}

func (BookModel) TableName() string { return "books" }

type MemberModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null;index"`
	Email     string `gorm:"index"`
	Phone     string
	Active    bool      `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

func (MemberModel) TableName() string { return "members" }

type LoanModel struct {
	ID         string          `gorm:"primaryKey"`
	BookID     string          `gorm:"not null;index"`
	MemberID   string          `gorm:"not null;index"`
	IssuedOn   datatypes.Date  `gorm:"not null"`
	DueOn      datatypes.Date  `gorm:"not null;index"`
	ReturnedOn *datatypes.Date `gorm:"index"`
	Fine       float64         `gorm:"not null"`
	CreatedAt  time.Time       `gorm:"not null;index"`
}

func (LoanModel) TableName() string { return "loans" }

type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null;index"`
	FullName     string
	Active       bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

func bookToModel(b domain.Book) BookModel {
	m := BookModel{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Genre:         b.Genre,
		Available:     b.Available,
		AttachmentKey: b.AttachmentKey,
		CreatedAt:     b.CreatedAt,
	}
	// NULL rather than "" so the unique index ignores books without an ISBN.
	if b.ISBN != "" {
		isbn := b.ISBN
		m.ISBN = &isbn
	}
	return m
}

func bookFromModel(m BookModel) domain.Book {
	b := domain.Book{
		ID:            m.ID,
		Title:         m.Title,
		Author:        m.Author,
		Genre:         m.Genre,
		Available:     m.Available,
		AttachmentKey: m.AttachmentKey,
		CreatedAt:     m.CreatedAt,
	}
	if m.ISBN != nil {
		b.ISBN = *m.ISBN
	}
	return b
}

func memberToModel(m domain.Member) MemberModel {
	return MemberModel{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}
}

func memberFromModel(m MemberModel) domain.Member {
	return domain.Member{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}
}

func loanToModel(l domain.Loan) LoanModel {
	m := LoanModel{
		ID:        l.ID,
		BookID:    l.BookID,
		MemberID:  l.MemberID,
		IssuedOn:  datatypes.Date(l.IssuedOn),
		DueOn:     datatypes.Date(l.DueOn),
		Fine:      l.Fine,
		CreatedAt: l.CreatedAt,
	}
	if l.ReturnedOn != nil {
		d := datatypes.Date(*l.ReturnedOn)
		m.ReturnedOn = &d
	}
	return m
}

func loanFromModel(m LoanModel) domain.Loan {
	l := domain.Loan{
		ID:        m.ID,
		BookID:    m.BookID,
		MemberID:  m.MemberID,
		IssuedOn:  domain.DateOf(time.Time(m.IssuedOn)),
		DueOn:     domain.DateOf(time.Time(m.DueOn)),
		Fine:      m.Fine,
		CreatedAt: m.CreatedAt,
	}
	if m.ReturnedOn != nil {
		d := domain.DateOf(time.Time(*m.ReturnedOn))
		l.ReturnedOn = &d
	}
	return l
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		FullName:     u.FullName,
		Active:       u.Active,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		FullName:     m.FullName,
		Active:       m.Active,
		CreatedAt:    m.CreatedAt,
	}
}
