// Package store provides SQLite persistence for the OLT inventory, the
// default credential, the status vocabulary and the audit log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nanoncore/nano-onulocator/types"
	"github.com/nanoncore/nano-onulocator/vendors/common"
)

// system_config keys holding the fleet-wide login
const (
	KeyUniversalUsername = "universal_username"
	KeyUniversalPassword = "universal_password"
)

// defaultOLTType is the olts.type value of rows created without one
const defaultOLTType = "ZTE"

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &DB{DB: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (db *DB) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS olts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			ip TEXT NOT NULL UNIQUE,
			username TEXT,
			password TEXT,
			type TEXT DEFAULT 'ZTE',
			actions TEXT DEFAULT 'view,edit,delete'
		)`,

		`CREATE TABLE IF NOT EXISTS system_config (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL UNIQUE,
			value TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS status_descriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			status_code TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL,
			color TEXT DEFAULT 'gray'
		)`,

		`CREATE TABLE IF NOT EXISTS logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			usuario TEXT NOT NULL,
			message TEXT NOT NULL,
			ip_address TEXT,
			system_info TEXT,
			details TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to execute: %s: %w", table, err)
		}
	}

	// Columns missing from databases created by older deployments. The
	// statement fails when the column already exists.
	migrations := []string{
		"ALTER TABLE olts ADD COLUMN protocol TEXT",
		"ALTER TABLE olts ADD COLUMN port INTEGER",
	}
	for _, m := range migrations {
		db.Exec(m)
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

const targetColumns = `name, ip, COALESCE(username, ''), COALESCE(password, ''),
	COALESCE(type, ''), COALESCE(protocol, ''), COALESCE(port, 0)`

func scanTarget(row interface{ Scan(...any) error }) (types.Target, error) {
	var (
		t        types.Target
		oltType  string
		protocol string
	)
	if err := row.Scan(&t.Name, &t.Address, &t.Username, &t.Password, &oltType, &protocol, &t.Port); err != nil {
		return types.Target{}, err
	}
	t.Vendor = types.Vendor(strings.ToLower(oltType))
	t.Protocol = types.Protocol(strings.ToLower(protocol))
	return t, nil
}

// Targets returns every inventoried OLT ordered by insertion
func (db *DB) Targets(ctx context.Context) ([]types.Target, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+targetColumns+` FROM olts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query olts: %w", err)
	}
	defer rows.Close()

	var targets []types.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan olt: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// TargetByAddress returns the OLT registered under address
func (db *DB) TargetByAddress(ctx context.Context, address string) (types.Target, bool, error) {
	row := db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM olts WHERE ip = ?`, address)
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Target{}, false, nil
	}
	if err != nil {
		return types.Target{}, false, fmt.Errorf("failed to query olt %s: %w", address, err)
	}
	return t, true, nil
}

// AddTarget inserts an OLT or replaces the one with the same address
func (db *DB) AddTarget(ctx context.Context, t types.Target) error {
	if t.Address == "" {
		return fmt.Errorf("olt address is required")
	}
	if t.Name == "" {
		t.Name = t.Address
	}
	oltType := strings.ToUpper(string(t.Vendor))
	if oltType == "" {
		oltType = defaultOLTType
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO olts (name, ip, username, password, type, protocol, port)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ip) DO UPDATE SET
			name = excluded.name,
			username = excluded.username,
			password = excluded.password,
			type = excluded.type,
			protocol = excluded.protocol,
			port = excluded.port`,
		t.Name, t.Address, nullIfEmpty(t.Username), nullIfEmpty(t.Password),
		oltType, nullIfEmpty(string(t.Protocol)), nullIfZero(t.Port))
	if err != nil {
		return fmt.Errorf("failed to save olt %s: %w", t.Address, err)
	}
	return nil
}

// RemoveTarget deletes the OLT registered under address
func (db *DB) RemoveTarget(ctx context.Context, address string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM olts WHERE ip = ?`, address)
	if err != nil {
		return false, fmt.Errorf("failed to delete olt %s: %w", address, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Settings returns the system_config table as a map
func (db *DB) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, COALESCE(value, '') FROM system_config`)
	if err != nil {
		return nil, fmt.Errorf("failed to query system_config: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// SetSetting stores one system_config value
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO system_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// DefaultCredential reads the fleet-wide login. Missing keys yield empty
// fields; the caller decides whether the pair is usable.
func (db *DB) DefaultCredential(ctx context.Context) (types.Credential, error) {
	settings, err := db.Settings(ctx)
	if err != nil {
		return types.Credential{}, err
	}
	return types.Credential{
		Username: common.LookupSettingWithDefault(settings, "", KeyUniversalUsername),
		Password: common.LookupSettingWithDefault(settings, "", KeyUniversalPassword),
	}, nil
}

// SetDefaultCredential stores the fleet-wide login
func (db *DB) SetDefaultCredential(ctx context.Context, cred types.Credential) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for key, value := range map[string]string{
			KeyUniversalUsername: cred.Username,
			KeyUniversalPassword: cred.Password,
		} {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO system_config (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
			if err != nil {
				return fmt.Errorf("failed to save setting %s: %w", key, err)
			}
		}
		return nil
	})
}

// StatusEntries returns the status vocabulary
func (db *DB) StatusEntries(ctx context.Context) ([]types.StatusEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT status_code, description, COALESCE(color, '')
		FROM status_descriptions ORDER BY status_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query status_descriptions: %w", err)
	}
	defer rows.Close()

	var entries []types.StatusEntry
	for rows.Next() {
		var e types.StatusEntry
		if err := rows.Scan(&e.Code, &e.Description, &e.Color); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddStatus inserts or replaces a status code
func (db *DB) AddStatus(ctx context.Context, e types.StatusEntry) error {
	if e.Code == "" {
		return fmt.Errorf("status code is required")
	}
	if e.Color == "" {
		e.Color = types.DefaultColor
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO status_descriptions (status_code, description, color) VALUES (?, ?, ?)
		ON CONFLICT(status_code) DO UPDATE SET
			description = excluded.description,
			color = excluded.color`, e.Code, e.Description, e.Color)
	if err != nil {
		return fmt.Errorf("failed to save status %s: %w", e.Code, err)
	}
	return nil
}

// Record appends an audit event to the logs table
func (db *DB) Record(ctx context.Context, e types.AuditEvent) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO logs (timestamp, usuario, message, details) VALUES (?, ?, ?, ?)`,
		ts.UTC(), e.Operator, e.Action, e.Details)
	if err != nil {
		return fmt.Errorf("failed to record log: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit audit events, newest first
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]types.AuditEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT timestamp, usuario, message, COALESCE(details, '')
		FROM logs ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var events []types.AuditEvent
	for rows.Next() {
		var e types.AuditEvent
		if err := rows.Scan(&e.Timestamp, &e.Operator, &e.Action, &e.Details); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
