package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rcourtman/netpulse/internal/apperr"
	"github.com/rcourtman/netpulse/internal/models"
	"github.com/rcourtman/netpulse/internal/storage"
)

// SnmpRepository is typed CRUD over snmp_devices/snmp_oids and
// snmp_results/snmp_varbinds.
type SnmpRepository struct {
	db *storage.DB
}

func NewSnmpRepository(db *storage.DB) *SnmpRepository {
	return &SnmpRepository{db: db}
}

func (r *SnmpRepository) InsertDevice(ctx context.Context, c *models.SnmpDeviceConfig) (int64, error) {
	var id int64
	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO snmp_devices (host_id, version, community, username, security_level,
				auth_protocol, auth_password, priv_protocol, priv_password, context_name,
				context_engine_id, port, timeout_ms, retries, poll_interval_seconds, enabled, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.HostID, string(c.Version), c.Credentials.Community, c.Credentials.Username,
			string(c.Credentials.SecurityLevel), c.Credentials.AuthProtocol, c.Credentials.AuthPassword,
			c.Credentials.PrivProtocol, c.Credentials.PrivPassword, c.Credentials.ContextName,
			c.Credentials.ContextEngineID, c.Port, c.TimeoutMs, c.Retries, c.PollIntervalSeconds,
			c.Enabled, formatTime(c.CreatedAt))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		for _, oid := range c.OIDs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO snmp_oids (device_id, oid) VALUES (?, ?)`, id, oid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperr.Storage("insert snmp device", err)
	}
	return id, nil
}

const snmpDeviceSelect = `SELECT id, host_id, version, community, username, security_level,
	auth_protocol, auth_password, priv_protocol, priv_password, context_name, context_engine_id,
	port, timeout_ms, retries, poll_interval_seconds, enabled, created_at, last_polled FROM snmp_devices`

func (r *SnmpRepository) FindDeviceByHostID(ctx context.Context, hostID int64) (*models.SnmpDeviceConfig, error) {
	row := r.db.Raw().QueryRowContext(ctx, snmpDeviceSelect+` WHERE host_id=?`, hostID)
	c, err := scanSnmpDevice(row)
	if err != nil {
		return nil, err
	}
	oids, err := r.oidsForDevice(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.OIDs = oids
	return c, nil
}

func (r *SnmpRepository) FindEnabledDevices(ctx context.Context) ([]*models.SnmpDeviceConfig, error) {
	rows, err := r.db.Raw().QueryContext(ctx, snmpDeviceSelect+` WHERE enabled=1`)
	if err != nil {
		return nil, apperr.Storage("list enabled snmp devices", err)
	}
	defer rows.Close()

	var out []*models.SnmpDeviceConfig
	for rows.Next() {
		c, err := scanSnmpDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, c := range out {
		oids, err := r.oidsForDevice(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.OIDs = oids
	}
	return out, nil
}

func (r *SnmpRepository) oidsForDevice(ctx context.Context, deviceID int64) ([]string, error) {
	rows, err := r.db.Raw().QueryContext(ctx, `SELECT oid FROM snmp_oids WHERE device_id=?`, deviceID)
	if err != nil {
		return nil, apperr.Storage("list snmp oids", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var oid string
		if err := rows.Scan(&oid); err != nil {
			return nil, apperr.Storage("scan snmp oid", err)
		}
		out = append(out, oid)
	}
	return out, rows.Err()
}

func (r *SnmpRepository) UpdateLastPolled(ctx context.Context, deviceID int64) error {
	res, err := r.db.Raw().ExecContext(ctx, `UPDATE snmp_devices SET last_polled=datetime('now') WHERE id=?`, deviceID)
	if err != nil {
		return apperr.Storage("update snmp last_polled", err)
	}
	return requireAffected(res, "snmp device")
}

// InsertResult persists a poll outcome and its varbinds in one transaction.
func (r *SnmpRepository) InsertResult(ctx context.Context, res *models.SnmpResult) (int64, error) {
	var id int64
	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO snmp_results (host_id, timestamp, version, response_time_us, success,
				error_message, error_status, error_index)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			res.HostID, formatTime(res.Timestamp), string(res.Version), res.ResponseTimeUs,
			res.Success, res.ErrorMessage, res.ErrorStatus, res.ErrorIndex)
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		if err != nil {
			return err
		}
		for _, vb := range res.VarBinds {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO snmp_varbinds (result_id, oid, type, value, int_value, counter_value)
				VALUES (?, ?, ?, ?, ?, ?)`,
				id, vb.OID, string(vb.Type), vb.Value, intValueArg(vb.IntValue), counterValueArg(vb.CounterValue)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperr.Storage("insert snmp result", err)
	}
	return id, nil
}

func (r *SnmpRepository) GetResults(ctx context.Context, hostID int64, limit int) ([]*models.SnmpResult, error) {
	rows, err := r.db.Raw().QueryContext(ctx, `
		SELECT id, host_id, timestamp, version, response_time_us, success, error_message,
			error_status, error_index
		FROM snmp_results WHERE host_id=? ORDER BY timestamp DESC LIMIT ?`, hostID, limit)
	if err != nil {
		return nil, apperr.Storage("list snmp results", err)
	}
	defer rows.Close()

	var results []*models.SnmpResult
	for rows.Next() {
		var s models.SnmpResult
		var version, ts string
		if err := rows.Scan(&s.ID, &s.HostID, &ts, &version, &s.ResponseTimeUs, &s.Success,
			&s.ErrorMessage, &s.ErrorStatus, &s.ErrorIndex); err != nil {
			return nil, apperr.Storage("scan snmp result", err)
		}
		s.Version = models.SnmpVersion(version)
		if s.Timestamp, err = parseTime(ts); err != nil {
			return nil, apperr.Storage("parse snmp result timestamp", err)
		}
		results = append(results, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, s := range results {
		vbs, err := r.varbindsForResult(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		s.VarBinds = vbs
	}
	return results, nil
}

func (r *SnmpRepository) varbindsForResult(ctx context.Context, resultID int64) ([]models.SnmpVarBind, error) {
	rows, err := r.db.Raw().QueryContext(ctx, `
		SELECT oid, type, value, int_value, counter_value FROM snmp_varbinds WHERE result_id=?`, resultID)
	if err != nil {
		return nil, apperr.Storage("list snmp varbinds", err)
	}
	defer rows.Close()

	var out []models.SnmpVarBind
	for rows.Next() {
		var vb models.SnmpVarBind
		var typ string
		var intVal, counterVal sql.NullInt64
		if err := rows.Scan(&vb.OID, &typ, &vb.Value, &intVal, &counterVal); err != nil {
			return nil, apperr.Storage("scan snmp varbind", err)
		}
		vb.Type = models.SnmpVarBindType(typ)
		if intVal.Valid {
			v := intVal.Int64
			vb.IntValue = &v
		}
		if counterVal.Valid {
			v := uint64(counterVal.Int64)
			vb.CounterValue = &v
		}
		out = append(out, vb)
	}
	return out, rows.Err()
}

func (r *SnmpRepository) CleanupResultsOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-maxAge))
	res, err := r.db.Raw().ExecContext(ctx, `DELETE FROM snmp_results WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, apperr.Storage("cleanup snmp results", err)
	}
	return res.RowsAffected()
}

func scanSnmpDevice(row rowScanner) (*models.SnmpDeviceConfig, error) {
	var c models.SnmpDeviceConfig
	var version, createdAt string
	var lastPolled sql.NullString
	err := row.Scan(&c.ID, &c.HostID, &version, &c.Credentials.Community, &c.Credentials.Username,
		&c.Credentials.SecurityLevel, &c.Credentials.AuthProtocol, &c.Credentials.AuthPassword,
		&c.Credentials.PrivProtocol, &c.Credentials.PrivPassword, &c.Credentials.ContextName,
		&c.Credentials.ContextEngineID, &c.Port, &c.TimeoutMs, &c.Retries, &c.PollIntervalSeconds,
		&c.Enabled, &createdAt, &lastPolled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("snmp device not found")
	}
	if err != nil {
		return nil, apperr.Storage("scan snmp device", err)
	}
	c.Version = models.SnmpVersion(version)
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, apperr.Storage("parse snmp device created_at", err)
	}
	if c.LastPolled, err = parseTimePtr(nullableString(lastPolled)); err != nil {
		return nil, apperr.Storage("parse snmp device last_polled", err)
	}
	return &c, nil
}

func intValueArg(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func counterValueArg(v *uint64) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}
