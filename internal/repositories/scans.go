package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rcourtman/netpulse/internal/apperr"
	"github.com/rcourtman/netpulse/internal/models"
	"github.com/rcourtman/netpulse/internal/storage"
)

// ScanRepository is typed CRUD over scheduled_scans and port_scan_diffs.
type ScanRepository struct {
	db *storage.DB
}

func NewScanRepository(db *storage.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

const scanConfigSelect = `SELECT id, name, target_address, port_range, custom_ports,
	interval_minutes, enabled, notify_on_changes, created_at, last_run_at, next_run_at
	FROM scheduled_scans`

func (r *ScanRepository) InsertScheduledScan(ctx context.Context, c *models.ScheduledScanConfig) (int64, error) {
	if c.PortRange == models.PortRangeCustom && len(c.CustomPorts) == 0 {
		return 0, apperr.Validation("customPorts is required when portRange is Custom")
	}
	if c.IntervalMinutes < 1 {
		return 0, apperr.Validation("intervalMinutes must be >= 1")
	}
	res, err := r.db.Raw().ExecContext(ctx, `
		INSERT INTO scheduled_scans (name, target_address, port_range, custom_ports,
			interval_minutes, enabled, notify_on_changes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.TargetAddress, string(c.PortRange), joinPorts(c.CustomPorts),
		c.IntervalMinutes, c.Enabled, c.NotifyOnChanges, formatTime(c.CreatedAt))
	if err != nil {
		return 0, apperr.Storage("insert scheduled scan", err)
	}
	return res.LastInsertId()
}

func (r *ScanRepository) UpdateScheduledScanRun(ctx context.Context, id int64, lastRunAt, nextRunAt *time.Time) error {
	_, err := r.db.Raw().ExecContext(ctx,
		`UPDATE scheduled_scans SET last_run_at=?, next_run_at=? WHERE id=?`,
		formatTimePtr(lastRunAt), formatTimePtr(nextRunAt), id)
	if err != nil {
		return apperr.Storage("update scheduled scan run", err)
	}
	return nil
}

func (r *ScanRepository) FindAllScheduledScans(ctx context.Context) ([]*models.ScheduledScanConfig, error) {
	rows, err := r.db.Raw().QueryContext(ctx, scanConfigSelect+` ORDER BY name`)
	if err != nil {
		return nil, apperr.Storage("list scheduled scans", err)
	}
	defer rows.Close()
	return scanScheduledScans(rows)
}

func (r *ScanRepository) FindEnabledScheduledScans(ctx context.Context) ([]*models.ScheduledScanConfig, error) {
	rows, err := r.db.Raw().QueryContext(ctx, scanConfigSelect+` WHERE enabled=1 ORDER BY name`)
	if err != nil {
		return nil, apperr.Storage("list enabled scheduled scans", err)
	}
	defer rows.Close()
	return scanScheduledScans(rows)
}

func (r *ScanRepository) RemoveScheduledScan(ctx context.Context, id int64) error {
	res, err := r.db.Raw().ExecContext(ctx, `DELETE FROM scheduled_scans WHERE id=?`, id)
	if err != nil {
		return apperr.Storage("delete scheduled scan", err)
	}
	return requireAffected(res, "scheduled scan")
}

// InsertPortScanDiff persists a diff and its changes in one transaction.
func (r *ScanRepository) InsertPortScanDiff(ctx context.Context, d *models.PortScanDiff) (int64, error) {
	var id int64
	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO port_scan_diffs (target_address, previous_scan_time, current_scan_time,
				total_ports_scanned, open_ports_before, open_ports_after)
			VALUES (?, ?, ?, ?, ?, ?)`,
			d.TargetAddress, formatTime(d.PreviousScanTime), formatTime(d.CurrentScanTime),
			d.TotalPortsScanned, d.OpenPortsBefore, d.OpenPortsAfter)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		for _, c := range d.Changes {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO port_changes (diff_id, port, change_type, previous_state, current_state, service_name)
				VALUES (?, ?, ?, ?, ?, ?)`,
				id, c.Port, string(c.ChangeType), string(c.PreviousState), string(c.CurrentState), c.ServiceName); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperr.Storage("insert port scan diff", err)
	}
	return id, nil
}

func (r *ScanRepository) GetPortScanDiffs(ctx context.Context, address string, limit int) ([]*models.PortScanDiff, error) {
	rows, err := r.db.Raw().QueryContext(ctx, `
		SELECT id, target_address, previous_scan_time, current_scan_time, total_ports_scanned,
			open_ports_before, open_ports_after
		FROM port_scan_diffs WHERE target_address=? ORDER BY current_scan_time DESC LIMIT ?`, address, limit)
	if err != nil {
		return nil, apperr.Storage("list port scan diffs", err)
	}
	defer rows.Close()

	var diffs []*models.PortScanDiff
	for rows.Next() {
		var d models.PortScanDiff
		var prevTs, curTs string
		if err := rows.Scan(&d.ID, &d.TargetAddress, &prevTs, &curTs, &d.TotalPortsScanned,
			&d.OpenPortsBefore, &d.OpenPortsAfter); err != nil {
			return nil, apperr.Storage("scan port scan diff", err)
		}
		if d.PreviousScanTime, err = parseTime(prevTs); err != nil {
			return nil, apperr.Storage("parse diff previous time", err)
		}
		if d.CurrentScanTime, err = parseTime(curTs); err != nil {
			return nil, apperr.Storage("parse diff current time", err)
		}
		diffs = append(diffs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, d := range diffs {
		changes, err := r.getPortChanges(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		d.Changes = changes
	}
	return diffs, nil
}

func (r *ScanRepository) getPortChanges(ctx context.Context, diffID int64) ([]models.PortChange, error) {
	rows, err := r.db.Raw().QueryContext(ctx, `
		SELECT port, change_type, previous_state, current_state, service_name
		FROM port_changes WHERE diff_id=? ORDER BY port ASC`, diffID)
	if err != nil {
		return nil, apperr.Storage("list port changes", err)
	}
	defer rows.Close()

	var changes []models.PortChange
	for rows.Next() {
		var c models.PortChange
		var changeType, prev, cur string
		if err := rows.Scan(&c.Port, &changeType, &prev, &cur, &c.ServiceName); err != nil {
			return nil, apperr.Storage("scan port change", err)
		}
		c.ChangeType = models.PortChangeType(changeType)
		c.PreviousState = models.PortState(prev)
		c.CurrentState = models.PortState(cur)
		changes = append(changes, c)
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Port < changes[j].Port })
	return changes, rows.Err()
}

// CleanupPortScanDiffsOlderThan deletes diffs (and their cascaded
// port_changes rows) older than maxAge, per spec §4.13.
func (r *ScanRepository) CleanupPortScanDiffsOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-maxAge))
	res, err := r.db.Raw().ExecContext(ctx, `DELETE FROM port_scan_diffs WHERE current_scan_time < ?`, cutoff)
	if err != nil {
		return 0, apperr.Storage("cleanup port scan diffs", err)
	}
	return res.RowsAffected()
}

func scanScheduledScans(rows *sql.Rows) ([]*models.ScheduledScanConfig, error) {
	var out []*models.ScheduledScanConfig
	for rows.Next() {
		var c models.ScheduledScanConfig
		var portRange, customPorts, createdAt string
		var lastRunAt, nextRunAt sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.TargetAddress, &portRange, &customPorts,
			&c.IntervalMinutes, &c.Enabled, &c.NotifyOnChanges, &createdAt, &lastRunAt, &nextRunAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, apperr.NotFound("scheduled scan not found")
			}
			return nil, apperr.Storage("scan scheduled scan", err)
		}
		c.PortRange = models.PortRange(portRange)
		c.CustomPorts = splitPorts(customPorts)
		var err error
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, apperr.Storage("parse scan created_at", err)
		}
		if c.LastRunAt, err = parseTimePtr(nullableString(lastRunAt)); err != nil {
			return nil, apperr.Storage("parse scan last_run_at", err)
		}
		if c.NextRunAt, err = parseTimePtr(nullableString(nextRunAt)); err != nil {
			return nil, apperr.Storage("parse scan next_run_at", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func nullableString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	return &n.String
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func splitPorts(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if v, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, v)
		}
	}
	return out
}
