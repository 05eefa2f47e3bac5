package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Astemirdum/lending-service/lending/internal/errs"
	"github.com/Astemirdum/lending-service/lending/internal/model"
	"github.com/Astemirdum/lending-service/lending/internal/repository"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func seed() *repository.Memory {
	m := repository.NewMemory()
	m.PutUser(model.User{ID: 1, Username: "alice"})
	m.PutBook(model.Book{ID: 10, Title: "Dune", Author: "Frank Herbert", TotalCopies: 2, AvailableCopies: 2})
	return m
}

func TestMemory_StagedUntilCommit(t *testing.T) {
	t.Parallel()
	m := seed()
	ctx := context.Background()

	err := m.WithTx(ctx, func(tx repository.Tx) error {
		book, err := tx.LockBook(ctx, 10)
		require.NoError(t, err)
		book.AvailableCopies--
		require.NoError(t, tx.SaveBookCopies(ctx, book))

		b, err := tx.CreateBorrow(ctx, model.Borrow{UserID: 1, BookID: 10, BorrowDate: t0, DueDate: t0.Add(time.Hour)})
		require.NoError(t, err)
		require.NotZero(t, b.ID)

		committed, err := m.GetBook(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, 2, committed.AvailableCopies)

		n, err := m.CountActiveBorrows(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, 0, n)
		n, err = tx.CountActiveBorrows(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)

	book, err := m.GetBook(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, book.AvailableCopies)
	n, err := m.CountActiveBorrows(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestMemory_RollbackOnError(t *testing.T) {
	t.Parallel()
	m := seed()
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(tx repository.Tx) error {
		book, err := tx.LockBook(ctx, 10)
		require.NoError(t, err)
		book.AvailableCopies = 0
		require.NoError(t, tx.SaveBookCopies(ctx, book))
		_, err = tx.CreateBorrow(ctx, model.Borrow{UserID: 1, BookID: 10, BorrowDate: t0, DueDate: t0})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	book, err := m.GetBook(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, book.AvailableCopies)
	require.Empty(t, m.Borrows())
}

func TestMemory_WriteChecks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		fn      func(tx repository.Tx) error
		wantErr error
	}{
		{
			name: "available above total",
			fn: func(tx repository.Tx) error {
				book, err := tx.LockBook(ctx, 10)
				if err != nil {
					return err
				}
				book.AvailableCopies = 3
				return tx.SaveBookCopies(ctx, book)
			},
			wantErr: errs.ErrInventoryInvariant,
		},
		{
			name: "negative available",
			fn: func(tx repository.Tx) error {
				book, err := tx.LockBook(ctx, 10)
				if err != nil {
					return err
				}
				book.AvailableCopies = -1
				return tx.SaveBookCopies(ctx, book)
			},
			wantErr: errs.ErrInventoryInvariant,
		},
		{
			name: "unknown book",
			fn: func(tx repository.Tx) error {
				_, err := tx.LockBook(ctx, 404)
				return err
			},
			wantErr: errs.ErrNotFound,
		},
		{
			name: "borrow for unknown user",
			fn: func(tx repository.Tx) error {
				_, err := tx.CreateBorrow(ctx, model.Borrow{UserID: 404, BookID: 10, BorrowDate: t0, DueDate: t0})
				return err
			},
			wantErr: errs.ErrNotFound,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := seed()
			require.ErrorIs(t, m.WithTx(ctx, tt.fn), tt.wantErr)
			book, err := m.GetBook(ctx, 10)
			require.NoError(t, err)
			require.Equal(t, 2, book.AvailableCopies)
		})
	}
}

func TestMemory_SaveRequiresLock(t *testing.T) {
	t.Parallel()
	m := seed()
	ctx := context.Background()

	err := m.WithTx(ctx, func(tx repository.Tx) error {
		return tx.SaveBookCopies(ctx, model.Book{ID: 10, TotalCopies: 2, AvailableCopies: 1})
	})
	require.Error(t, err)
	err = m.WithTx(ctx, func(tx repository.Tx) error {
		return tx.SavePenaltyPoints(ctx, 1, 3)
	})
	require.Error(t, err)
}

func TestMemory_ReturnOnce(t *testing.T) {
	t.Parallel()
	m := seed()
	ctx := context.Background()
	b := m.PutBorrow(model.Borrow{UserID: 1, BookID: 10, BorrowDate: t0, DueDate: t0.Add(time.Hour)})

	returnIt := func() error {
		return m.WithTx(ctx, func(tx repository.Tx) error {
			if _, err := tx.LockBorrow(ctx, b.ID); err != nil {
				return err
			}
			return tx.SaveBorrowReturn(ctx, b.ID, t0.Add(2*time.Hour))
		})
	}
	require.NoError(t, returnIt())
	require.ErrorIs(t, returnIt(), errs.ErrAlreadyReturned)

	got, err := m.GetBorrow(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReturnDate)
	require.Equal(t, t0.Add(2*time.Hour), *got.ReturnDate)
}

func TestMemory_ListActiveBorrows(t *testing.T) {
	t.Parallel()
	m := seed()
	ctx := context.Background()
	returned := t0.Add(time.Hour)

	older := m.PutBorrow(model.Borrow{UserID: 1, BookID: 10, BorrowDate: t0, DueDate: t0})
	sameA := m.PutBorrow(model.Borrow{UserID: 1, BookID: 10, BorrowDate: t0.Add(time.Minute), DueDate: t0})
	sameB := m.PutBorrow(model.Borrow{UserID: 1, BookID: 10, BorrowDate: t0.Add(time.Minute), DueDate: t0})
	m.PutBorrow(model.Borrow{UserID: 1, BookID: 10, BorrowDate: t0.Add(time.Hour), DueDate: t0, ReturnDate: &returned})
	m.PutBorrow(model.Borrow{UserID: 2, BookID: 10, BorrowDate: t0, DueDate: t0})

	items, err := m.ListActiveBorrows(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, []int64{sameB.ID, sameA.ID, older.ID}, []int64{items[0].ID, items[1].ID, items[2].ID})
	require.Equal(t, "alice", items[0].Username)
	require.Equal(t, "Dune", items[0].BookTitle)
	require.Equal(t, "Frank Herbert", items[0].AuthorName)
}

func TestMemory_LockWaitCanceled(t *testing.T) {
	t.Parallel()
	m := seed()

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = m.WithTx(context.Background(), func(tx repository.Tx) error {
			_, err := tx.LockUser(context.Background(), 1)
			close(held)
			<-release
			return err
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.WithTx(ctx, func(tx repository.Tx) error {
		_, err := tx.LockUser(ctx, 1)
		return err
	})
	require.ErrorIs(t, err, errs.ErrBusy)
}
