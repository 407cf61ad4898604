package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Migration is one SQL script applied exactly once, in Version order.
type Migration struct {
	Version int
	SQL     string
}

// migrations is additive-only: never edit a past entry, only append new
// ones with a higher Version.
var migrations = []Migration{
	{
		Version: 1,
		SQL: `
CREATE TABLE hosts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	address TEXT NOT NULL UNIQUE,
	ping_interval_seconds INTEGER NOT NULL DEFAULT 60,
	warning_threshold_ms INTEGER NOT NULL DEFAULT 100,
	critical_threshold_ms INTEGER NOT NULL DEFAULT 500,
	status TEXT NOT NULL DEFAULT 'unknown',
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	last_checked TEXT
);

CREATE TABLE ping_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	host_id INTEGER NOT NULL REFERENCES hosts(id) ON DELETE CASCADE,
	timestamp TEXT NOT NULL,
	latency_us INTEGER NOT NULL DEFAULT 0,
	success INTEGER NOT NULL,
	ttl INTEGER,
	error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX idx_ping_results_host_id ON ping_results(host_id);
CREATE INDEX idx_ping_results_timestamp ON ping_results(timestamp);

CREATE TABLE alerts (
	id TEXT PRIMARY KEY,
	host_id INTEGER NOT NULL,
	type TEXT NOT NULL,
	severity TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	acknowledged INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_alerts_timestamp ON alerts(timestamp);

CREATE TABLE port_scan_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	target_address TEXT NOT NULL,
	port INTEGER NOT NULL,
	state TEXT NOT NULL,
	service_name TEXT NOT NULL DEFAULT '',
	scan_timestamp TEXT NOT NULL
);
CREATE INDEX idx_port_scan_results_target ON port_scan_results(target_address);
`,
	},
	{
		Version: 2,
		SQL: `
CREATE TABLE host_groups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	parent_id INTEGER REFERENCES host_groups(id) ON DELETE SET NULL,
	created_at TEXT NOT NULL
);

ALTER TABLE hosts ADD COLUMN group_id INTEGER REFERENCES host_groups(id) ON DELETE SET NULL;
`,
	},
	{
		Version: 3,
		SQL: `
CREATE TABLE scheduled_scans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	target_address TEXT NOT NULL,
	port_range TEXT NOT NULL,
	custom_ports TEXT NOT NULL DEFAULT '',
	interval_minutes INTEGER NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	notify_on_changes INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	last_run_at TEXT,
	next_run_at TEXT
);
`,
	},
	{
		Version: 4,
		SQL: `
CREATE TABLE port_scan_diffs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	target_address TEXT NOT NULL,
	previous_scan_time TEXT NOT NULL,
	current_scan_time TEXT NOT NULL,
	total_ports_scanned INTEGER NOT NULL,
	open_ports_before INTEGER NOT NULL,
	open_ports_after INTEGER NOT NULL
);

CREATE TABLE port_changes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	diff_id INTEGER NOT NULL REFERENCES port_scan_diffs(id) ON DELETE CASCADE,
	port INTEGER NOT NULL,
	change_type TEXT NOT NULL,
	previous_state TEXT NOT NULL,
	current_state TEXT NOT NULL,
	service_name TEXT NOT NULL DEFAULT ''
);
CREATE INDEX idx_port_changes_diff_id ON port_changes(diff_id);
`,
	},
	{
		Version: 5,
		SQL: `
CREATE TABLE snmp_devices (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	host_id INTEGER NOT NULL UNIQUE REFERENCES hosts(id) ON DELETE CASCADE,
	version TEXT NOT NULL,
	community TEXT NOT NULL DEFAULT '',
	username TEXT NOT NULL DEFAULT '',
	security_level TEXT NOT NULL DEFAULT '',
	auth_protocol TEXT NOT NULL DEFAULT '',
	auth_password TEXT NOT NULL DEFAULT '',
	priv_protocol TEXT NOT NULL DEFAULT '',
	priv_password TEXT NOT NULL DEFAULT '',
	context_name TEXT NOT NULL DEFAULT '',
	context_engine_id TEXT NOT NULL DEFAULT '',
	port INTEGER NOT NULL DEFAULT 161,
	timeout_ms INTEGER NOT NULL DEFAULT 2000,
	retries INTEGER NOT NULL DEFAULT 1,
	poll_interval_seconds INTEGER NOT NULL DEFAULT 60,
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	last_polled TEXT
);

CREATE TABLE snmp_oids (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER NOT NULL REFERENCES snmp_devices(id) ON DELETE CASCADE,
	oid TEXT NOT NULL
);
CREATE INDEX idx_snmp_oids_device_id ON snmp_oids(device_id);

CREATE TABLE snmp_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	host_id INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	version TEXT NOT NULL,
	response_time_us INTEGER NOT NULL,
	success INTEGER NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	error_status INTEGER NOT NULL DEFAULT 0,
	error_index INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_snmp_results_host_id ON snmp_results(host_id);

CREATE TABLE snmp_varbinds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	result_id INTEGER NOT NULL REFERENCES snmp_results(id) ON DELETE CASCADE,
	oid TEXT NOT NULL,
	type TEXT NOT NULL,
	value TEXT NOT NULL,
	int_value INTEGER,
	counter_value INTEGER
);
CREATE INDEX idx_snmp_varbinds_result_id ON snmp_varbinds(result_id);
`,
	},
	{
		Version: 6,
		SQL: `
CREATE TABLE webhook_endpoints (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	secret TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
`,
	},
}

func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.sql.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := db.sql.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		log.Info().Int("version", m.Version).Msg("applying migration")
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))`, m.Version); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
