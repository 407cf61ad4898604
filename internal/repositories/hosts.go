package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rcourtman/netpulse/internal/apperr"
	"github.com/rcourtman/netpulse/internal/models"
	"github.com/rcourtman/netpulse/internal/storage"
)

// HostRepository is typed CRUD over the hosts table.
type HostRepository struct {
	db *storage.DB
}

func NewHostRepository(db *storage.DB) *HostRepository {
	return &HostRepository{db: db}
}

func (r *HostRepository) Insert(ctx context.Context, h *models.Host) (int64, error) {
	if h.Name == "" {
		return 0, apperr.Validation("host name must not be empty")
	}
	if h.Address == "" {
		return 0, apperr.Validation("host address must not be empty")
	}
	if h.PingIntervalSeconds < 1 {
		return 0, apperr.Validation("ping interval must be >= 1 second")
	}
	if h.WarningThresholdMs < 0 || h.CriticalThresholdMs < 0 {
		return 0, apperr.Validation("thresholds must be non-negative")
	}
	if h.Status == "" {
		h.Status = models.HostStatusUnknown
	}

	res, err := r.db.Raw().ExecContext(ctx, `
		INSERT INTO hosts (name, address, ping_interval_seconds, warning_threshold_ms,
			critical_threshold_ms, status, enabled, group_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.Name, h.Address, h.PingIntervalSeconds, h.WarningThresholdMs,
		h.CriticalThresholdMs, string(h.Status), h.Enabled, groupIDArg(h.GroupID), formatTime(h.CreatedAt))
	if err != nil {
		if isUniqueConstraint(err) {
			return 0, apperr.Validation("a host with address %q already exists", h.Address)
		}
		return 0, apperr.Storage("insert host", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Storage("read last insert id", err)
	}
	return id, nil
}

func (r *HostRepository) Update(ctx context.Context, h *models.Host) error {
	_, err := r.db.Raw().ExecContext(ctx, `
		UPDATE hosts SET name=?, address=?, ping_interval_seconds=?, warning_threshold_ms=?,
			critical_threshold_ms=?, enabled=?, group_id=?
		WHERE id=?`,
		h.Name, h.Address, h.PingIntervalSeconds, h.WarningThresholdMs,
		h.CriticalThresholdMs, h.Enabled, groupIDArg(h.GroupID), h.ID)
	if err != nil {
		if isUniqueConstraint(err) {
			return apperr.Validation("a host with address %q already exists", h.Address)
		}
		return apperr.Storage("update host", err)
	}
	return nil
}

func (r *HostRepository) Remove(ctx context.Context, id int64) error {
	res, err := r.db.Raw().ExecContext(ctx, `DELETE FROM hosts WHERE id=?`, id)
	if err != nil {
		return apperr.Storage("delete host", err)
	}
	return requireAffected(res, "host")
}

func (r *HostRepository) FindByID(ctx context.Context, id int64) (*models.Host, error) {
	row := r.db.Raw().QueryRowContext(ctx, hostSelect+` WHERE id=?`, id)
	return scanHost(row)
}

func (r *HostRepository) FindByAddress(ctx context.Context, address string) (*models.Host, error) {
	row := r.db.Raw().QueryRowContext(ctx, hostSelect+` WHERE address=?`, address)
	return scanHost(row)
}

func (r *HostRepository) FindAll(ctx context.Context) ([]*models.Host, error) {
	rows, err := r.db.Raw().QueryContext(ctx, hostSelect+` ORDER BY name`)
	if err != nil {
		return nil, apperr.Storage("list hosts", err)
	}
	defer rows.Close()
	return scanHosts(rows)
}

func (r *HostRepository) FindEnabled(ctx context.Context) ([]*models.Host, error) {
	rows, err := r.db.Raw().QueryContext(ctx, hostSelect+` WHERE enabled=1 ORDER BY name`)
	if err != nil {
		return nil, apperr.Storage("list enabled hosts", err)
	}
	defer rows.Close()
	return scanHosts(rows)
}

// FindByGroupID returns hosts in the given group; groupID == nil returns
// ungrouped hosts.
func (r *HostRepository) FindByGroupID(ctx context.Context, groupID *int64) ([]*models.Host, error) {
	var rows *sql.Rows
	var err error
	if groupID == nil {
		rows, err = r.db.Raw().QueryContext(ctx, hostSelect+` WHERE group_id IS NULL ORDER BY name`)
	} else {
		rows, err = r.db.Raw().QueryContext(ctx, hostSelect+` WHERE group_id=? ORDER BY name`, *groupID)
	}
	if err != nil {
		return nil, apperr.Storage("list hosts by group", err)
	}
	defer rows.Close()
	return scanHosts(rows)
}

func (r *HostRepository) UpdateStatus(ctx context.Context, id int64, status models.HostStatus) error {
	res, err := r.db.Raw().ExecContext(ctx, `UPDATE hosts SET status=? WHERE id=?`, string(status), id)
	if err != nil {
		return apperr.Storage("update host status", err)
	}
	return requireAffected(res, "host")
}

func (r *HostRepository) UpdateLastChecked(ctx context.Context, id int64) error {
	res, err := r.db.Raw().ExecContext(ctx, `UPDATE hosts SET last_checked=datetime('now') WHERE id=?`, id)
	if err != nil {
		return apperr.Storage("update last checked", err)
	}
	return requireAffected(res, "host")
}

func (r *HostRepository) SetHostGroup(ctx context.Context, id int64, groupID *int64) error {
	res, err := r.db.Raw().ExecContext(ctx, `UPDATE hosts SET group_id=? WHERE id=?`, groupIDArg(groupID), id)
	if err != nil {
		return apperr.Storage("set host group", err)
	}
	return requireAffected(res, "host")
}

func (r *HostRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Raw().QueryRowContext(ctx, `SELECT count(*) FROM hosts`).Scan(&n); err != nil {
		return 0, apperr.Storage("count hosts", err)
	}
	return n, nil
}

const hostSelect = `SELECT id, name, address, ping_interval_seconds, warning_threshold_ms,
	critical_threshold_ms, status, enabled, group_id, created_at, last_checked FROM hosts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHost(row rowScanner) (*models.Host, error) {
	var h models.Host
	var status string
	var groupID sql.NullInt64
	var createdAt string
	var lastChecked sql.NullString

	err := row.Scan(&h.ID, &h.Name, &h.Address, &h.PingIntervalSeconds, &h.WarningThresholdMs,
		&h.CriticalThresholdMs, &status, &h.Enabled, &groupID, &createdAt, &lastChecked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("host not found")
	}
	if err != nil {
		return nil, apperr.Storage("scan host", err)
	}
	h.Status = models.HostStatus(status)
	if groupID.Valid {
		v := groupID.Int64
		h.GroupID = &v
	}
	h.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, apperr.Storage("parse host created_at", err)
	}
	if lastChecked.Valid {
		t, err := parseTime(lastChecked.String)
		if err != nil {
			return nil, apperr.Storage("parse host last_checked", err)
		}
		h.LastChecked = &t
	}
	return &h, nil
}

func scanHosts(rows *sql.Rows) ([]*models.Host, error) {
	var out []*models.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func groupIDArg(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage(fmt.Sprintf("read rows affected for %s", what), err)
	}
	if n == 0 {
		return apperr.NotFound("%s not found", what)
	}
	return nil
}

func isUniqueConstraint(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
