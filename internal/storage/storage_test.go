package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func openMemDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenRunsMigrations(t *testing.T) {
	db := openMemDB(t)

	var count int
	err := db.Raw().QueryRow(`SELECT count(*) FROM schema_migrations`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, len(migrations), count)

	for _, table := range []string{"hosts", "ping_results", "alerts", "port_scan_results",
		"host_groups", "scheduled_scans", "port_scan_diffs", "port_changes",
		"snmp_devices", "snmp_oids", "snmp_results", "snmp_varbinds", "webhook_endpoints"} {
		var name string
		err := db.Raw().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := openMemDB(t)
	require.NoError(t, db.migrate(context.Background()))
}
