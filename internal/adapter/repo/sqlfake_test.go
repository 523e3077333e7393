package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeSQL satisfies infra.SQLExecutor with canned per-query responses,
// keyed by the sqlinline constant the repository passes through.
type fakeSQL struct {
	execTags map[string]pgconn.CommandTag
	execErrs map[string]error
	rows     map[string]scanFunc

	execCalls []execCall
}

type execCall struct {
	query string
	args  []any
}

type scanFunc func(dest ...any) error

func newFakeSQL() *fakeSQL {
	return &fakeSQL{
		execTags: map[string]pgconn.CommandTag{},
		execErrs: map[string]error{},
		rows:     map[string]scanFunc{},
	}
}

func (f *fakeSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.execCalls = append(f.execCalls, execCall{query: query, args: args})
	if err, ok := f.execErrs[query]; ok {
		return pgconn.CommandTag{}, err
	}
	if tag, ok := f.execTags[query]; ok {
		return tag, nil
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeSQL) QueryRow(_ context.Context, query string, _ ...any) pgx.Row {
	if scan, ok := f.rows[query]; ok {
		return fakeRow{scan: scan}
	}
	return fakeRow{}
}

func (f *fakeSQL) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("query not supported by fake")
}

func (f *fakeSQL) lastExec() execCall {
	if len(f.execCalls) == 0 {
		return execCall{}
	}
	return f.execCalls[len(f.execCalls)-1]
}

type fakeRow struct {
	scan scanFunc
}

func (r fakeRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// donationRow produces a scanFunc matching the column order of the
// donation queries.
type donationRow struct {
	id, owner, amount, currency, method, corr, status string
	receipt, metadata                                 []byte
	processedAt                                       *time.Time
	createdAt, updatedAt                              time.Time
}

func (r donationRow) scan(dest ...any) error {
	if len(dest) != 12 {
		return fmt.Errorf("donation scan expects 12 columns, got %d", len(dest))
	}
	*dest[0].(*string) = r.id
	*dest[1].(*string) = r.owner
	*dest[2].(*string) = r.amount
	*dest[3].(*string) = r.currency
	*dest[4].(*string) = r.method
	*dest[5].(*string) = r.corr
	*dest[6].(*string) = r.status
	*dest[7].(*[]byte) = r.receipt
	*dest[8].(*[]byte) = r.metadata
	*dest[9].(**time.Time) = r.processedAt
	*dest[10].(*time.Time) = r.createdAt
	*dest[11].(*time.Time) = r.updatedAt
	return nil
}

// aggregateRow matches the donor aggregate column order.
type aggregateRow struct {
	owner     string
	amount    string
	count     int64
	updatedAt time.Time
}

func (r aggregateRow) scan(dest ...any) error {
	if len(dest) != 4 {
		return fmt.Errorf("aggregate scan expects 4 columns, got %d", len(dest))
	}
	*dest[0].(*string) = r.owner
	*dest[1].(*string) = r.amount
	*dest[2].(*int64) = r.count
	*dest[3].(*time.Time) = r.updatedAt
	return nil
}
