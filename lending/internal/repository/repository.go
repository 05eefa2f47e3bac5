package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/lending/internal/errs"
	"github.com/Astemirdum/lending-service/lending/internal/model"
)

// Repository is the read side of the entity store plus the transaction boundary.
// Reads never lock.
type Repository interface {
	GetBook(ctx context.Context, bookID int64) (model.Book, error)
	GetBorrow(ctx context.Context, borrowID int64) (model.Borrow, error)
	GetUser(ctx context.Context, userID int64) (model.User, error)
	CountActiveBorrows(ctx context.Context, userID int64) (int, error)
	ListActiveBorrows(ctx context.Context, userID int64) ([]model.BorrowDetails, error)
	// WithTx runs fn in one transaction: commit when fn returns nil, rollback otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side. Lock* methods take an exclusive row lock held until the
// transaction ends; callers take them in the order Borrow -> Book -> User.
type Tx interface {
	LockBook(ctx context.Context, bookID int64) (model.Book, error)
	LockBorrow(ctx context.Context, borrowID int64) (model.Borrow, error)
	LockUser(ctx context.Context, userID int64) (model.User, error)
	CountActiveBorrows(ctx context.Context, userID int64) (int, error)
	CreateBorrow(ctx context.Context, borrow model.Borrow) (model.Borrow, error)
	SaveBookCopies(ctx context.Context, book model.Book) error
	SaveBorrowReturn(ctx context.Context, borrowID int64, returnDate time.Time) error
	SavePenaltyPoints(ctx context.Context, userID int64, points int) error
}

type repository struct {
	db          *pgxpool.Pool
	log         *zap.Logger
	lockTimeout time.Duration
}

type Option func(r *repository)

// WithLockTimeout bounds the wait for row locks; zero keeps the server default.
func WithLockTimeout(d time.Duration) Option {
	return func(r *repository) {
		r.lockTimeout = d
	}
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger, opts ...Option) (*repository, error) {
	if db == nil {
		return nil, errors.New("nil pool")
	}
	r := &repository{
		db:  db,
		log: log.Named("repo"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

const (
	booksTableName   = `books`
	borrowsTableName = `borrows`
	usersTableName   = `users`
)

var (
	qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	bookColumns   = []string{"id", "title", "author", "total_copies", "available_copies"}
	borrowColumns = []string{"id", "user_id", "book_id", "borrow_date", "due_date", "return_date", "created_at"}
	userColumns   = []string{"id", "username", "penalty_points", "is_staff"}
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func collectOne[T any](ctx context.Context, q querier, entity string, query string, args ...any) (T, error) {
	var zero T
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return zero, classify(err)
	}
	defer rows.Close()

	item, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, errs.NotFound(entity)
		}
		return zero, classify(err)
	}
	return item, nil
}

// selectByIDSQL reads one row by primary key, locking it when forUpdate is set.
func selectByIDSQL(table string, columns []string, id int64, forUpdate bool) (string, []any, error) {
	sb := qb.Select(columns...).
		From(table).
		Where(sq.Eq{"id": id})
	if forUpdate {
		sb = sb.Suffix("FOR UPDATE")
	}
	return sb.ToSql()
}

func getBook(ctx context.Context, q querier, bookID int64, forUpdate bool) (model.Book, error) {
	query, args, err := selectByIDSQL(booksTableName, bookColumns, bookID, forUpdate)
	if err != nil {
		return model.Book{}, err
	}
	return collectOne[model.Book](ctx, q, "book", query, args...)
}

func getBorrow(ctx context.Context, q querier, borrowID int64, forUpdate bool) (model.Borrow, error) {
	query, args, err := selectByIDSQL(borrowsTableName, borrowColumns, borrowID, forUpdate)
	if err != nil {
		return model.Borrow{}, err
	}
	return collectOne[model.Borrow](ctx, q, "borrow", query, args...)
}

func getUser(ctx context.Context, q querier, userID int64, forUpdate bool) (model.User, error) {
	query, args, err := selectByIDSQL(usersTableName, userColumns, userID, forUpdate)
	if err != nil {
		return model.User{}, err
	}
	return collectOne[model.User](ctx, q, "user", query, args...)
}

func countActiveBorrows(ctx context.Context, q querier, userID int64) (int, error) {
	query, args, err := qb.Select("count(*)").
		From(borrowsTableName).
		Where(sq.Eq{"user_id": userID, "return_date": nil}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	if err := q.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, classify(err)
	}
	return count, nil
}

func (r *repository) GetBook(ctx context.Context, bookID int64) (model.Book, error) {
	return getBook(ctx, r.db, bookID, false)
}

func (r *repository) GetBorrow(ctx context.Context, borrowID int64) (model.Borrow, error) {
	return getBorrow(ctx, r.db, borrowID, false)
}

func (r *repository) GetUser(ctx context.Context, userID int64) (model.User, error) {
	return getUser(ctx, r.db, userID, false)
}

func (r *repository) CountActiveBorrows(ctx context.Context, userID int64) (int, error) {
	return countActiveBorrows(ctx, r.db, userID)
}

var activeBorrowColumns = []string{
	"br.id", "br.user_id", "br.book_id", "br.borrow_date", "br.due_date", "br.return_date", "br.created_at",
	"u.username", "b.title", "b.author",
}

// listActiveBorrowsSQL selects columns named after the db tags of model.BorrowDetails.
func listActiveBorrowsSQL(userID int64) (string, []any, error) {
	return qb.Select(activeBorrowColumns...).
		From(borrowsTableName + " br").
		Join(fmt.Sprintf("%s b on b.id = br.book_id", booksTableName)).
		Join(fmt.Sprintf("%s u on u.id = br.user_id", usersTableName)).
		Where(sq.Eq{"br.user_id": userID, "br.return_date": nil}).
		OrderBy("br.borrow_date desc", "br.id desc").
		ToSql()
}

func (r *repository) ListActiveBorrows(ctx context.Context, userID int64) ([]model.BorrowDetails, error) {
	query, args, err := listActiveBorrowsSQL(userID)
	if err != nil {
		return nil, err
	}
	r.log.Debug("ListActiveBorrows", zap.String("query", query), zap.Any("args", args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.BorrowDetails])
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return items, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	pgTx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(classify(err), "begin tx")
	}
	defer func() {
		if rbErr := pgTx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.log.Warn("rollback", zap.Error(rbErr))
		}
	}()

	if r.lockTimeout > 0 {
		// SET does not accept bind parameters.
		q := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
		if _, err := pgTx.Exec(ctx, q); err != nil {
			return errors.Wrap(classify(err), "set lock_timeout")
		}
	}

	if err := fn(&tx{tx: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return errors.Wrap(classify(err), "commit")
	}
	return nil
}

type tx struct {
	tx pgx.Tx
}

func (t *tx) LockBook(ctx context.Context, bookID int64) (model.Book, error) {
	return getBook(ctx, t.tx, bookID, true)
}

func (t *tx) LockBorrow(ctx context.Context, borrowID int64) (model.Borrow, error) {
	return getBorrow(ctx, t.tx, borrowID, true)
}

func (t *tx) LockUser(ctx context.Context, userID int64) (model.User, error) {
	return getUser(ctx, t.tx, userID, true)
}

func (t *tx) CountActiveBorrows(ctx context.Context, userID int64) (int, error) {
	return countActiveBorrows(ctx, t.tx, userID)
}

func (t *tx) CreateBorrow(ctx context.Context, borrow model.Borrow) (model.Borrow, error) {
	if borrow.DueDate.Before(borrow.BorrowDate) {
		return model.Borrow{}, errors.Errorf("due date %s is before borrow date %s", borrow.DueDate, borrow.BorrowDate)
	}
	query, args, err := qb.Insert(borrowsTableName).
		Columns("user_id", "book_id", "borrow_date", "due_date", "created_at").
		Values(borrow.UserID, borrow.BookID, borrow.BorrowDate, borrow.DueDate, borrow.BorrowDate).
		Suffix("returning id, user_id, book_id, borrow_date, due_date, return_date, created_at").
		ToSql()
	if err != nil {
		return model.Borrow{}, err
	}
	created, err := collectOne[model.Borrow](ctx, t.tx, "borrow", query, args...)
	if err != nil {
		return model.Borrow{}, err
	}
	return created, nil
}

func (t *tx) SaveBookCopies(ctx context.Context, book model.Book) error {
	if err := book.CheckCopies(); err != nil {
		return err
	}
	q := `
update books
    set available_copies = @available, total_copies = @total
where id = @id`
	args := pgx.NamedArgs{
		"id":        book.ID,
		"available": book.AvailableCopies,
		"total":     book.TotalCopies,
	}
	tag, err := t.tx.Exec(ctx, q, args)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("book")
	}
	return nil
}

func (t *tx) SaveBorrowReturn(ctx context.Context, borrowID int64, returnDate time.Time) error {
	q := `
update borrows
    set return_date = @return_date
where id = @id and return_date is null`
	args := pgx.NamedArgs{
		"id":          borrowID,
		"return_date": returnDate,
	}
	tag, err := t.tx.Exec(ctx, q, args)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(errs.ErrAlreadyReturned, "borrow %d", borrowID)
	}
	return nil
}

func (t *tx) SavePenaltyPoints(ctx context.Context, userID int64, points int) error {
	if points < 0 {
		return errors.Errorf("negative penalty points %d for user %d", points, userID)
	}
	query, args, err := qb.Update(usersTableName).
		Set("penalty_points", points).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("user")
	}
	return nil
}

// classify maps postgres error codes onto the domain errors.
func classify(err error) error {
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(errs.ErrBusy, err.Error())
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.LockNotAvailable, pgerrcode.DeadlockDetected, pgerrcode.SerializationFailure:
		return errors.Wrap(errs.ErrBusy, pgErr.Message)
	case pgerrcode.ForeignKeyViolation:
		return errors.Wrap(errs.ErrNotFound, pgErr.Detail)
	case pgerrcode.CheckViolation:
		if pgErr.TableName == booksTableName {
			return errors.Wrap(errs.ErrInventoryInvariant, pgErr.ConstraintName)
		}
	}
	return err
}
