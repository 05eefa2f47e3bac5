package repository

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Astemirdum/lending-service/lending/internal/model"
)

// dbTags lists the db tags pgx.RowToStructByName matches, embedded structs included.
func dbTags(typ reflect.Type) []string {
	var tags []string
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			tags = append(tags, dbTags(f.Type)...)
			continue
		}
		if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func TestSelectByIDSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		table     string
		columns   []string
		forUpdate bool
		wantSQL   string
	}{
		{
			name:    "book read",
			table:   booksTableName,
			columns: bookColumns,
			wantSQL: "SELECT id, title, author, total_copies, available_copies FROM books WHERE id = $1",
		},
		{
			name:      "book lock",
			table:     booksTableName,
			columns:   bookColumns,
			forUpdate: true,
			wantSQL:   "SELECT id, title, author, total_copies, available_copies FROM books WHERE id = $1 FOR UPDATE",
		},
		{
			name:      "borrow lock",
			table:     borrowsTableName,
			columns:   borrowColumns,
			forUpdate: true,
			wantSQL:   "SELECT id, user_id, book_id, borrow_date, due_date, return_date, created_at FROM borrows WHERE id = $1 FOR UPDATE",
		},
		{
			name:      "user lock",
			table:     usersTableName,
			columns:   userColumns,
			forUpdate: true,
			wantSQL:   "SELECT id, username, penalty_points, is_staff FROM users WHERE id = $1 FOR UPDATE",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			query, args, err := selectByIDSQL(tt.table, tt.columns, 42, tt.forUpdate)
			require.NoError(t, err)
			require.Equal(t, tt.wantSQL, query)
			require.Equal(t, []any{int64(42)}, args)
		})
	}
}

func TestColumnsMatchModelTags(t *testing.T) {
	t.Parallel()
	require.Equal(t, dbTags(reflect.TypeOf(model.Book{})), bookColumns)
	require.Equal(t, dbTags(reflect.TypeOf(model.Borrow{})), borrowColumns)
	require.Equal(t, dbTags(reflect.TypeOf(model.User{})), userColumns)

	names := make([]string, 0, len(activeBorrowColumns))
	for _, c := range activeBorrowColumns {
		names = append(names, c[strings.Index(c, ".")+1:])
	}
	require.ElementsMatch(t, dbTags(reflect.TypeOf(model.BorrowDetails{})), names)
}

func TestListActiveBorrowsSQL(t *testing.T) {
	t.Parallel()
	query, args, err := listActiveBorrowsSQL(7)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(query, "SELECT br.id, br.user_id, br.book_id, br.borrow_date, br.due_date, br.return_date, br.created_at, u.username, b.title, b.author FROM borrows br"), query)
	require.Contains(t, query, "JOIN books b on b.id = br.book_id")
	require.Contains(t, query, "JOIN users u on u.id = br.user_id")
	require.Contains(t, query, "br.return_date IS NULL")
	require.Contains(t, query, "br.user_id = $1")
	require.True(t, strings.HasSuffix(query, "ORDER BY br.borrow_date desc, br.id desc"), query)
	require.NotContains(t, query, "FOR UPDATE")
	require.Equal(t, []any{int64(7)}, args)
}
