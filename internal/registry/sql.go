package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/sakif/watchlist/internal/apperror"
)

// compile-time check that *SQLAccessor implements Accessor
var _ Accessor = (*SQLAccessor)(nil)

// SQLAccessor is an Accessor backed by a single SQL table.
//
// It is configured with the table name, the primary-key column, and a repr
// expression (any SQL expression producing the display string, e.g.
// "first_name || ' ' || last_name"). Table and column names come from the
// composition root, never from request input, so interpolating them into the
// query text is safe; row values still go through placeholders.
type SQLAccessor struct {
	db       *sql.DB
	label    string
	table    string
	pkCol    string
	reprExpr string
}

// NewSQLAccessor creates an accessor for one table.
func NewSQLAccessor(db *sql.DB, label, table, pkCol, reprExpr string) *SQLAccessor {
	return &SQLAccessor{
		db:       db,
		label:    label,
		table:    table,
		pkCol:    pkCol,
		reprExpr: reprExpr,
	}
}

// Label returns the model label this accessor serves.
func (a *SQLAccessor) Label() string { return a.label }

// row is the generic Object an SQLAccessor hands back from Fetch.
type row struct {
	label string
	id    int64
	repr  string
}

func (r row) ModelLabel() string { return r.label }
func (r row) ObjectID() int64    { return r.id }
func (r row) ObjectRepr() string { return r.repr }

// Fetch returns the object with the given primary key.
//
// sql.ErrNoRows is translated to apperror.NotFound: a missing row is the
// expected fate of a stale watchlist reference, not a storage failure.
func (a *SQLAccessor) Fetch(ctx context.Context, id int64) (Object, error) {
	query := fmt.Sprintf(
		`SELECT %s, %s FROM %s WHERE %s = ?`,
		a.pkCol, a.reprExpr, a.table, a.pkCol,
	)

	var r row
	r.label = a.label
	err := a.db.QueryRowContext(ctx, query, id).Scan(&r.id, &r.repr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound(a.label, strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("registry: fetching %s %d: %w", a.label, id, err)
	}

	return r, nil
}

// Existing filters ids down to those that still have a live row.
//
// One query regardless of input size: SELECT pk WHERE pk IN (...), then the
// input order is restored from the result set. Empty input short-circuits
// without a query.
func (a *SQLAccessor) Existing(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1] // trim trailing comma

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s IN (%s)`,
		a.pkCol, a.table, a.pkCol, placeholders,
	)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("registry: checking existing %s ids: %w", a.label, err)
	}
	defer rows.Close()

	alive := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("registry: scanning %s id: %w", a.label, err)
		}
		alive[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: iterating %s ids: %w", a.label, err)
	}

	existing := make([]int64, 0, len(alive))
	for _, id := range ids {
		if alive[id] {
			existing = append(existing, id)
		}
	}
	return existing, nil
}
