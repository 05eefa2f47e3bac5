package model

import (
	"time"

	"github.com/Astemirdum/lending-service/lending/internal/errs"
	"github.com/pkg/errors"
)

type Book struct {
	ID              int64  `json:"id" db:"id"`
	Title           string `json:"title" db:"title"`
	Author          string `json:"author" db:"author"`
	TotalCopies     int    `json:"total_copies" db:"total_copies"`
	AvailableCopies int    `json:"available_copies" db:"available_copies"`
}

// CheckCopies reports whether the copy counters satisfy 0 <= available <= total.
func (b Book) CheckCopies() error {
	if b.TotalCopies < 0 || b.AvailableCopies < 0 || b.AvailableCopies > b.TotalCopies {
		return errors.Wrapf(errs.ErrInventoryInvariant,
			"book %d: available=%d total=%d", b.ID, b.AvailableCopies, b.TotalCopies)
	}
	return nil
}

type Borrow struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"user" db:"user_id"`
	BookID     int64      `json:"book" db:"book_id"`
	BorrowDate time.Time  `json:"borrow_date" db:"borrow_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date" db:"return_date"`
	CreatedAt  time.Time  `json:"-" db:"created_at"`
}

func (b Borrow) IsActive() bool {
	return b.ReturnDate == nil
}

// BorrowDetails is a borrow joined with the names the read views show.
type BorrowDetails struct {
	Borrow
	Username   string `db:"username"`
	BookTitle  string `db:"title"`
	AuthorName string `db:"author"`
}

type User struct {
	ID            int64  `json:"id" db:"id"`
	Username      string `json:"username" db:"username"`
	PenaltyPoints int    `json:"penalty_points" db:"penalty_points"`
	IsStaff       bool   `json:"is_staff" db:"is_staff"`
}

type BorrowView struct {
	ID           int64      `json:"id"`
	User         int64      `json:"user"`
	UserUsername string     `json:"user_username"`
	Book         int64      `json:"book"`
	BookTitle    string     `json:"book_title"`
	AuthorName   string     `json:"author_name"`
	BorrowDate   time.Time  `json:"borrow_date"`
	DueDate      time.Time  `json:"due_date"`
	ReturnDate   *time.Time `json:"return_date"`
	IsOverdue    bool       `json:"is_overdue"`
	DaysOverdue  int        `json:"days_overdue"`
}

type ReturnResult struct {
	Message            string     `json:"message"`
	PenaltyPointsAdded int        `json:"penalty_points_added"`
	TotalPenaltyPoints int        `json:"total_penalty_points"`
	Borrow             BorrowView `json:"borrow"`
}

type PenaltyView struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	PenaltyPoints int    `json:"penalty_points"`
}

type BorrowRequest struct {
	BookID int64 `json:"book_id" validate:"required,gt=0"`
}

type ReturnRequest struct {
	BorrowID int64 `json:"borrow_id" validate:"required,gt=0"`
}
