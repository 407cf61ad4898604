package repositories

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rcourtman/netpulse/internal/apperr"
	"github.com/rcourtman/netpulse/internal/models"
	"github.com/rcourtman/netpulse/internal/storage"
)

// MetricsRepository is typed CRUD over ping results, alerts and port scan
// results (spec §4.3).
type MetricsRepository struct {
	db *storage.DB
}

func NewMetricsRepository(db *storage.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// --- ping results ---

func (r *MetricsRepository) InsertPingResult(ctx context.Context, p *models.PingResult) (int64, error) {
	res, err := r.db.Raw().ExecContext(ctx, `
		INSERT INTO ping_results (host_id, timestamp, latency_us, success, ttl, error_message)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.HostID, formatTime(p.Timestamp), p.LatencyUs, p.Success, ttlArg(p.TTL), p.ErrorMessage)
	if err != nil {
		return 0, apperr.Storage("insert ping result", err)
	}
	return res.LastInsertId()
}

const pingResultSelect = `SELECT id, host_id, timestamp, latency_us, success, ttl, error_message FROM ping_results`

func (r *MetricsRepository) GetPingResults(ctx context.Context, hostID int64, limit int) ([]*models.PingResult, error) {
	rows, err := r.db.Raw().QueryContext(ctx,
		pingResultSelect+` WHERE host_id=? ORDER BY timestamp DESC, id DESC LIMIT ?`, hostID, limit)
	if err != nil {
		return nil, apperr.Storage("list ping results", err)
	}
	defer rows.Close()
	return scanPingResults(rows)
}

func (r *MetricsRepository) GetPingResultsSince(ctx context.Context, hostID int64, since time.Time) ([]*models.PingResult, error) {
	rows, err := r.db.Raw().QueryContext(ctx,
		pingResultSelect+` WHERE host_id=? AND timestamp >= ? ORDER BY timestamp ASC, id ASC`,
		hostID, formatTime(since))
	if err != nil {
		return nil, apperr.Storage("list ping results since", err)
	}
	defer rows.Close()
	return scanPingResults(rows)
}

// GetStatistics computes PingStatistics over at most sampleCount of the
// most recent samples for hostID, per spec §4.3.
func (r *MetricsRepository) GetStatistics(ctx context.Context, hostID int64, sampleCount int) (*models.PingStatistics, error) {
	results, err := r.GetPingResults(ctx, hostID, sampleCount)
	if err != nil {
		return nil, err
	}
	return computeStatistics(results), nil
}

func computeStatistics(results []*models.PingResult) *models.PingStatistics {
	stats := &models.PingStatistics{TotalPings: len(results)}
	if len(results) == 0 {
		return stats
	}

	var sum int64
	var successCount int
	var min, max int64
	first := true
	for _, p := range results {
		if !p.Success {
			continue
		}
		successCount++
		sum += p.LatencyUs
		if first {
			min, max = p.LatencyUs, p.LatencyUs
			first = false
		} else {
			if p.LatencyUs < min {
				min = p.LatencyUs
			}
			if p.LatencyUs > max {
				max = p.LatencyUs
			}
		}
	}
	stats.SuccessfulPings = successCount
	stats.PacketLossPercent = 100 * (1 - float64(successCount)/float64(len(results)))

	if successCount == 0 {
		return stats
	}
	stats.MinLatencyUs = min
	stats.MaxLatencyUs = max
	stats.AvgLatencyUs = float64(sum) / float64(successCount)

	if successCount < 2 {
		return stats
	}
	var deviationSum float64
	for _, p := range results {
		if !p.Success {
			continue
		}
		d := float64(p.LatencyUs) - stats.AvgLatencyUs
		if d < 0 {
			d = -d
		}
		deviationSum += d
	}
	stats.JitterUs = deviationSum / float64(successCount)
	return stats
}

// --- alerts ---

func (r *MetricsRepository) InsertAlert(ctx context.Context, a *models.Alert) error {
	_, err := r.db.Raw().ExecContext(ctx, `
		INSERT INTO alerts (id, host_id, type, severity, title, message, timestamp, acknowledged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.HostID, string(a.Type), string(a.Severity), a.Title, a.Message,
		formatTime(a.Timestamp), a.Acknowledged)
	if err != nil {
		return apperr.Storage("insert alert", err)
	}
	return nil
}

const alertSelect = `SELECT id, host_id, type, severity, title, message, timestamp, acknowledged FROM alerts`

func (r *MetricsRepository) GetAlerts(ctx context.Context, limit int) ([]*models.Alert, error) {
	rows, err := r.db.Raw().QueryContext(ctx, alertSelect+` ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperr.Storage("list alerts", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// GetAlertsFiltered applies the conjunction described in spec §4.3: severity
// equals, type equals, acknowledged equals, and searchText case-insensitively
// matches title OR message.
func (r *MetricsRepository) GetAlertsFiltered(ctx context.Context, filter models.AlertFilter, limit int) ([]*models.Alert, error) {
	query := alertSelect
	var conds []string
	var args []any

	if filter.Severity != nil {
		conds = append(conds, "severity=?")
		args = append(args, string(*filter.Severity))
	}
	if filter.Type != nil {
		conds = append(conds, "type=?")
		args = append(args, string(*filter.Type))
	}
	if filter.Acknowledged != nil {
		conds = append(conds, "acknowledged=?")
		args = append(args, *filter.Acknowledged)
	}
	if filter.SearchText != "" {
		conds = append(conds, "(lower(title) LIKE ? OR lower(message) LIKE ?)")
		needle := "%" + strings.ToLower(filter.SearchText) + "%"
		args = append(args, needle, needle)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Raw().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage("list filtered alerts", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (r *MetricsRepository) GetUnacknowledgedAlerts(ctx context.Context) ([]*models.Alert, error) {
	rows, err := r.db.Raw().QueryContext(ctx, alertSelect+` WHERE acknowledged=0 ORDER BY timestamp DESC`)
	if err != nil {
		return nil, apperr.Storage("list unacknowledged alerts", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (r *MetricsRepository) AcknowledgeAlert(ctx context.Context, id string) error {
	res, err := r.db.Raw().ExecContext(ctx, `UPDATE alerts SET acknowledged=1 WHERE id=?`, id)
	if err != nil {
		return apperr.Storage("acknowledge alert", err)
	}
	return requireAffected(res, "alert")
}

func (r *MetricsRepository) AcknowledgeAll(ctx context.Context) (int64, error) {
	res, err := r.db.Raw().ExecContext(ctx, `UPDATE alerts SET acknowledged=1 WHERE acknowledged=0`)
	if err != nil {
		return 0, apperr.Storage("acknowledge all alerts", err)
	}
	return res.RowsAffected()
}

// ClearAlerts deletes every alert row. Preserved per spec §9 Open Questions
// as an internal API with no HTTP route exposing it.
func (r *MetricsRepository) ClearAlerts(ctx context.Context) error {
	if _, err := r.db.Raw().ExecContext(ctx, `DELETE FROM alerts`); err != nil {
		return apperr.Storage("clear alerts", err)
	}
	return nil
}

// --- port scan results ---

func (r *MetricsRepository) InsertPortScanResult(ctx context.Context, s *models.PortScanResult) (int64, error) {
	res, err := r.db.Raw().ExecContext(ctx, `
		INSERT INTO port_scan_results (target_address, port, state, service_name, scan_timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		s.TargetAddress, s.Port, string(s.State), s.ServiceName, formatTime(s.ScanTimestamp))
	if err != nil {
		return 0, apperr.Storage("insert port scan result", err)
	}
	return res.LastInsertId()
}

const portScanSelect = `SELECT id, target_address, port, state, service_name, scan_timestamp FROM port_scan_results`

func (r *MetricsRepository) GetPortScanResults(ctx context.Context, address string, limit int) ([]*models.PortScanResult, error) {
	rows, err := r.db.Raw().QueryContext(ctx,
		portScanSelect+` WHERE target_address=? ORDER BY scan_timestamp DESC LIMIT ?`, address, limit)
	if err != nil {
		return nil, apperr.Storage("list port scan results", err)
	}
	defer rows.Close()

	var out []*models.PortScanResult
	for rows.Next() {
		var s models.PortScanResult
		var state, ts string
		if err := rows.Scan(&s.ID, &s.TargetAddress, &s.Port, &state, &s.ServiceName, &ts); err != nil {
			return nil, apperr.Storage("scan port scan result", err)
		}
		s.State = models.PortState(state)
		s.ScanTimestamp, err = parseTime(ts)
		if err != nil {
			return nil, apperr.Storage("parse scan timestamp", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// --- export ---

func (r *MetricsRepository) ExportToJSON(ctx context.Context, hostID int64, limit int) ([]byte, error) {
	results, err := r.GetPingResults(ctx, hostID, limit)
	if err != nil {
		return nil, err
	}
	return json.Marshal(results)
}

// ExportToCSV renders "timestamp,latency_ms,success,ttl" rows per spec §6.
func (r *MetricsRepository) ExportToCSV(ctx context.Context, hostID int64, limit int) ([]byte, error) {
	results, err := r.GetPingResults(ctx, hostID, limit)
	if err != nil {
		return nil, err
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"timestamp", "latency_ms", "success", "ttl"}); err != nil {
		return nil, err
	}
	for _, p := range results {
		ttl := ""
		if p.TTL != nil {
			ttl = fmt.Sprintf("%d", *p.TTL)
		}
		record := []string{
			formatTime(p.Timestamp),
			fmt.Sprintf("%.3f", float64(p.LatencyUs)/1000),
			fmt.Sprintf("%t", p.Success),
			ttl,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// --- retention ---

func (r *MetricsRepository) CleanupPingResultsOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	return r.cleanupOlderThan(ctx, "ping_results", "timestamp", maxAge)
}

func (r *MetricsRepository) CleanupAlertsOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	return r.cleanupOlderThan(ctx, "alerts", "timestamp", maxAge)
}

func (r *MetricsRepository) CleanupPortScanResultsOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	return r.cleanupOlderThan(ctx, "port_scan_results", "scan_timestamp", maxAge)
}

func (r *MetricsRepository) cleanupOlderThan(ctx context.Context, table, column string, maxAge time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-maxAge))
	res, err := r.db.Raw().ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s < ?`, table, column), cutoff)
	if err != nil {
		return 0, apperr.Storage(fmt.Sprintf("cleanup %s", table), err)
	}
	return res.RowsAffected()
}

func scanPingResults(rows *sql.Rows) ([]*models.PingResult, error) {
	var out []*models.PingResult
	for rows.Next() {
		var p models.PingResult
		var ts string
		var ttl sql.NullInt64
		if err := rows.Scan(&p.ID, &p.HostID, &ts, &p.LatencyUs, &p.Success, &ttl, &p.ErrorMessage); err != nil {
			return nil, apperr.Storage("scan ping result", err)
		}
		t, err := parseTime(ts)
		if err != nil {
			return nil, apperr.Storage("parse ping timestamp", err)
		}
		p.Timestamp = t
		if ttl.Valid {
			v := int(ttl.Int64)
			p.TTL = &v
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func scanAlerts(rows *sql.Rows) ([]*models.Alert, error) {
	var out []*models.Alert
	for rows.Next() {
		var a models.Alert
		var typ, sev, ts string
		if err := rows.Scan(&a.ID, &a.HostID, &typ, &sev, &a.Title, &a.Message, &ts, &a.Acknowledged); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, apperr.NotFound("alert not found")
			}
			return nil, apperr.Storage("scan alert", err)
		}
		a.Type = models.AlertType(typ)
		a.Severity = models.AlertSeverity(sev)
		t, err := parseTime(ts)
		if err != nil {
			return nil, apperr.Storage("parse alert timestamp", err)
		}
		a.Timestamp = t
		out = append(out, &a)
	}
	return out, rows.Err()
}

func ttlArg(ttl *int) any {
	if ttl == nil {
		return nil
	}
	return *ttl
}
