package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Astemirdum/lending-service/lending/internal/errs"
	"github.com/Astemirdum/lending-service/lending/internal/model"
)

type rowKey struct {
	table string
	id    int64
}

// Memory is an in-process entity store with the same locking contract as the
// postgres repository: row locks are held until commit or rollback, and writes
// stay invisible to other transactions until commit.
type Memory struct {
	mu        sync.Mutex
	books     map[int64]model.Book
	borrows   map[int64]model.Borrow
	users     map[int64]model.User
	rowLocks  map[rowKey]chan struct{}
	borrowSeq int64
}

var _ Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		books:    make(map[int64]model.Book),
		borrows:  make(map[int64]model.Borrow),
		users:    make(map[int64]model.User),
		rowLocks: make(map[rowKey]chan struct{}),
	}
}

func (m *Memory) PutBook(b model.Book) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[b.ID] = b
}

func (m *Memory) PutUser(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// PutBorrow stores b as committed state; a zero ID gets the next sequence value.
func (m *Memory) PutBorrow(b model.Borrow) model.Borrow {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == 0 {
		m.borrowSeq++
		b.ID = m.borrowSeq
	} else if b.ID > m.borrowSeq {
		m.borrowSeq = b.ID
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = b.BorrowDate
	}
	m.borrows[b.ID] = b
	return b
}

func (m *Memory) GetBook(_ context.Context, bookID int64) (model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[bookID]
	if !ok {
		return model.Book{}, errs.NotFound("book")
	}
	return b, nil
}

func (m *Memory) GetBorrow(_ context.Context, borrowID int64) (model.Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.borrows[borrowID]
	if !ok {
		return model.Borrow{}, errs.NotFound("borrow")
	}
	return b, nil
}

func (m *Memory) GetUser(_ context.Context, userID int64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return model.User{}, errs.NotFound("user")
	}
	return u, nil
}

func (m *Memory) CountActiveBorrows(_ context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, b := range m.borrows {
		if b.UserID == userID && b.IsActive() {
			count++
		}
	}
	return count, nil
}

func (m *Memory) ListActiveBorrows(_ context.Context, userID int64) ([]model.BorrowDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.BorrowDetails, 0)
	for _, b := range m.borrows {
		if b.UserID != userID || !b.IsActive() {
			continue
		}
		items = append(items, model.BorrowDetails{
			Borrow:     b,
			Username:   m.users[b.UserID].Username,
			BookTitle:  m.books[b.BookID].Title,
			AuthorName: m.books[b.BookID].Author,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].BorrowDate.Equal(items[j].BorrowDate) {
			return items[i].BorrowDate.After(items[j].BorrowDate)
		}
		return items[i].ID > items[j].ID
	})
	return items, nil
}

// Borrows returns a snapshot of every committed borrow, ordered by id.
func (m *Memory) Borrows() []model.Borrow {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.Borrow, 0, len(m.borrows))
	for _, b := range m.borrows {
		items = append(items, b)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	t := &memTx{
		m:       m,
		held:    make(map[rowKey]chan struct{}),
		books:   make(map[int64]model.Book),
		borrows: make(map[int64]model.Borrow),
		users:   make(map[int64]model.User),
	}
	defer t.release()

	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "commit")
	}
	t.commit()
	return nil
}

func (m *Memory) rowLock(key rowKey) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rowLocks[key]
	if !ok {
		l = make(chan struct{}, 1)
		m.rowLocks[key] = l
	}
	return l
}

type memTx struct {
	m    *Memory
	held map[rowKey]chan struct{}

	books   map[int64]model.Book
	borrows map[int64]model.Borrow
	users   map[int64]model.User
}

func (t *memTx) lock(ctx context.Context, key rowKey) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	l := t.m.rowLock(key)
	select {
	case l <- struct{}{}:
		t.held[key] = l
		return nil
	case <-ctx.Done():
		return errors.Wrapf(errs.ErrBusy, "lock %s %d: %v", key.table, key.id, ctx.Err())
	}
}

func (t *memTx) mustHold(table string, id int64) error {
	if _, ok := t.held[rowKey{table: table, id: id}]; !ok {
		return errors.Errorf("%s %d is written without a row lock", table, id)
	}
	return nil
}

func (t *memTx) release() {
	for key, l := range t.held {
		<-l
		delete(t.held, key)
	}
}

func (t *memTx) commit() {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for id, b := range t.books {
		t.m.books[id] = b
	}
	for id, b := range t.borrows {
		t.m.borrows[id] = b
	}
	for id, u := range t.users {
		t.m.users[id] = u
	}
}

func (t *memTx) book(id int64) (model.Book, bool) {
	if b, ok := t.books[id]; ok {
		return b, true
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	b, ok := t.m.books[id]
	return b, ok
}

func (t *memTx) borrow(id int64) (model.Borrow, bool) {
	if b, ok := t.borrows[id]; ok {
		return b, true
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	b, ok := t.m.borrows[id]
	return b, ok
}

func (t *memTx) user(id int64) (model.User, bool) {
	if u, ok := t.users[id]; ok {
		return u, true
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	u, ok := t.m.users[id]
	return u, ok
}

func (t *memTx) LockBook(ctx context.Context, bookID int64) (model.Book, error) {
	if err := t.lock(ctx, rowKey{table: booksTableName, id: bookID}); err != nil {
		return model.Book{}, err
	}
	b, ok := t.book(bookID)
	if !ok {
		return model.Book{}, errs.NotFound("book")
	}
	return b, nil
}

func (t *memTx) LockBorrow(ctx context.Context, borrowID int64) (model.Borrow, error) {
	if err := t.lock(ctx, rowKey{table: borrowsTableName, id: borrowID}); err != nil {
		return model.Borrow{}, err
	}
	b, ok := t.borrow(borrowID)
	if !ok {
		return model.Borrow{}, errs.NotFound("borrow")
	}
	return b, nil
}

func (t *memTx) LockUser(ctx context.Context, userID int64) (model.User, error) {
	if err := t.lock(ctx, rowKey{table: usersTableName, id: userID}); err != nil {
		return model.User{}, err
	}
	u, ok := t.user(userID)
	if !ok {
		return model.User{}, errs.NotFound("user")
	}
	return u, nil
}

func (t *memTx) CountActiveBorrows(ctx context.Context, userID int64) (int, error) {
	count, err := t.m.CountActiveBorrows(ctx, userID)
	if err != nil {
		return 0, err
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for id, b := range t.borrows {
		committed, existed := t.m.borrows[id]
		switch {
		case !existed && b.UserID == userID && b.IsActive():
			count++
		case existed && committed.UserID == userID && committed.IsActive() && !b.IsActive():
			count--
		}
	}
	return count, nil
}

func (t *memTx) CreateBorrow(ctx context.Context, borrow model.Borrow) (model.Borrow, error) {
	if borrow.DueDate.Before(borrow.BorrowDate) {
		return model.Borrow{}, errors.Errorf("due date %s is before borrow date %s", borrow.DueDate, borrow.BorrowDate)
	}
	if _, ok := t.book(borrow.BookID); !ok {
		return model.Borrow{}, errors.Wrapf(errs.ErrNotFound, "book %d", borrow.BookID)
	}
	if _, ok := t.user(borrow.UserID); !ok {
		return model.Borrow{}, errors.Wrapf(errs.ErrNotFound, "user %d", borrow.UserID)
	}

	t.m.mu.Lock()
	t.m.borrowSeq++
	borrow.ID = t.m.borrowSeq
	t.m.mu.Unlock()

	borrow.ReturnDate = nil
	borrow.CreatedAt = borrow.BorrowDate
	if err := t.lock(ctx, rowKey{table: borrowsTableName, id: borrow.ID}); err != nil {
		return model.Borrow{}, err
	}
	t.borrows[borrow.ID] = borrow
	return borrow, nil
}

func (t *memTx) SaveBookCopies(_ context.Context, book model.Book) error {
	if err := book.CheckCopies(); err != nil {
		return err
	}
	if err := t.mustHold(booksTableName, book.ID); err != nil {
		return err
	}
	current, ok := t.book(book.ID)
	if !ok {
		return errs.NotFound("book")
	}
	current.AvailableCopies = book.AvailableCopies
	current.TotalCopies = book.TotalCopies
	t.books[book.ID] = current
	return nil
}

func (t *memTx) SaveBorrowReturn(_ context.Context, borrowID int64, returnDate time.Time) error {
	if err := t.mustHold(borrowsTableName, borrowID); err != nil {
		return err
	}
	b, ok := t.borrow(borrowID)
	if !ok {
		return errs.NotFound("borrow")
	}
	if !b.IsActive() {
		return errors.Wrapf(errs.ErrAlreadyReturned, "borrow %d", borrowID)
	}
	b.ReturnDate = &returnDate
	t.borrows[borrowID] = b
	return nil
}

func (t *memTx) SavePenaltyPoints(_ context.Context, userID int64, points int) error {
	if points < 0 {
		return errors.Errorf("negative penalty points %d for user %d", points, userID)
	}
	if err := t.mustHold(usersTableName, userID); err != nil {
		return err
	}
	u, ok := t.user(userID)
	if !ok {
		return errs.NotFound("user")
	}
	u.PenaltyPoints = points
	t.users[userID] = u
	return nil
}
