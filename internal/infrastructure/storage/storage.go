package storage

import (
	"context"
	"fmt"
	"strconv"

	"IssueTriage/internal/domain"
	"IssueTriage/internal/ports"
)

// ErrAlreadyExists is returned by Put when a record for the number exists.
var ErrAlreadyExists = domain.ErrAlreadyExists

// ErrNotFound is returned by Get when no record exists for the number.
var ErrNotFound = domain.ErrNotFound

// Supported drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverRedis    = "redis"
)

// Options selects and configures a store implementation.
type Options struct {
	Driver      string
	Dir         string
	DSN         string
	RedisAddr   string
	RedisDB     int
	RedisPrefix string
}

// Store is a RecordStore that owns a connection.
type Store interface {
	ports.RecordStore
	Close() error
}

// Open builds the store selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverFile:
		return NewFileStore(opts.Dir)
	case DriverPostgres, DriverSQLite:
		return OpenSQLStore(ctx, opts.Driver, opts.DSN)
	case DriverRedis:
		return OpenRedisStore(ctx, opts.RedisAddr, opts.RedisDB, opts.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

func encode(num int, record domain.Record) ([]byte, error) {
	raw, err := record.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode record #%d: %w", num, err)
	}
	return raw, nil
}

func decode(num int, raw []byte) (domain.Record, error) {
	record, err := domain.DecodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("decode record #%d: %w", num, err)
	}
	return record, nil
}

func parseNum(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
