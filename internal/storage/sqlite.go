package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/proxy-bench/internal/types"
)

// SQLiteReader reads the newest row of the snapshots table written by the
// proxy checker, or of proxy_snapshots. Databases that keep one proxy per row
// in a proxies table are read as well.
type SQLiteReader struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteReader, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &SQLiteReader{db: db}, nil
}

var snapshotTables = []string{"snapshots", "proxy_snapshots"}

func (s *SQLiteReader) Read(ctx context.Context) (*types.ProxyList, error) {
	for _, table := range snapshotTables {
		list, err := s.readSnapshot(ctx, table)
		if err != nil {
			return nil, err
		}
		if list != nil {
			return list, nil
		}
	}

	hasRows, err := s.hasTable(ctx, "proxies")
	if err != nil {
		return nil, err
	}
	if !hasRows {
		return nil, ErrEmpty
	}
	return s.readRows(ctx)
}

// readSnapshot returns nil without error when the table is missing or empty.
func (s *SQLiteReader) readSnapshot(ctx context.Context, table string) (*types.ProxyList, error) {
	ok, err := s.hasTable(ctx, table)
	if err != nil || !ok {
		return nil, err
	}

	var data string
	err = s.db.QueryRowContext(ctx,
		"SELECT data FROM "+table+" ORDER BY id DESC LIMIT 1").Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return decodeSnapshot([]byte(data))
}

func (s *SQLiteReader) hasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect schema: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteReader) readRows(ctx context.Context) (*types.ProxyList, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT address, COALESCE(protocol, ''), COALESCE(user, ''), COALESCE(password, ''), alive
		FROM proxies ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query proxies: %w", err)
	}
	defer rows.Close()

	list := &types.ProxyList{}
	for rows.Next() {
		var (
			e     types.ProxyEntry
			alive sql.NullBool
		)
		if err := rows.Scan(&e.Address, &e.Protocol, &e.User, &e.Password, &alive); err != nil {
			return nil, fmt.Errorf("scan proxy row: %w", err)
		}
		if alive.Valid {
			e.Alive = &alive.Bool
		}
		list.Proxies = append(list.Proxies, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proxies: %w", err)
	}
	if len(list.Proxies) == 0 {
		return nil, ErrEmpty
	}
	return list, nil
}

func (s *SQLiteReader) Close() error {
	return s.db.Close()
}
