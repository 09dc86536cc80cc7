package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"IssueTriage/internal/domain"
)

const recordsTable = "records"

const createRecordsTable = `CREATE TABLE IF NOT EXISTS records (
	num INTEGER PRIMARY KEY,
	body TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// SQLStore persists records in Postgres or SQLite.
type SQLStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ Store = (*SQLStore)(nil)

// OpenSQLStore connects with driver ("postgres" or "sqlite3") and creates the
// records table when missing.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s store requires a DSN", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer; also keeps a :memory: database on a single connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	store := NewSQLStore(db, driver)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wires an existing sql.DB implementation.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	var format sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		format = sq.Dollar
	}
	return &SQLStore{db: db, sb: sq.StatementBuilder.PlaceholderFormat(format)}
}

// EnsureSchema creates the records table.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createRecordsTable); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}
	return nil
}

// Exists reports whether a row exists for num.
func (s *SQLStore) Exists(ctx context.Context, num int) (bool, error) {
	query, args, err := s.sb.Select("1").From(recordsTable).Where(sq.Eq{"num": num}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query record #%d: %w", num, err)
	}
	return true, nil
}

// Put inserts the record unless a row for num exists.
func (s *SQLStore) Put(ctx context.Context, num int, record domain.Record) error {
	raw, err := encode(num, record)
	if err != nil {
		return err
	}

	query, args, err := s.sb.Insert(recordsTable).
		Columns("num", "body").
		Values(num, string(raw)).
		Suffix("ON CONFLICT (num) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert record #%d: %w", num, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record #%d: %w", num, ErrAlreadyExists)
	}
	return nil
}

// Get loads the record stored for num.
func (s *SQLStore) Get(ctx context.Context, num int) (domain.Record, error) {
	query, args, err := s.sb.Select("body").From(recordsTable).Where(sq.Eq{"num": num}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var body string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record #%d: %w", num, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query record #%d: %w", num, err)
	}
	return decode(num, []byte(body))
}

// Known returns every stored number.
func (s *SQLStore) Known(ctx context.Context) (map[int]struct{}, error) {
	query, args, err := s.sb.Select("num").From(recordsTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processed: %w", err)
	}

	result := make(map[int]struct{})
	for rows.Next() {
		var num int
		if err := rows.Scan(&num); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan num: %w", err)
		}
		result[num] = struct{}{}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
