package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rcourtman/netpulse/internal/apperr"
	"github.com/rcourtman/netpulse/internal/models"
	"github.com/rcourtman/netpulse/internal/storage"
)

// HostGroupRepository is typed CRUD over host_groups.
type HostGroupRepository struct {
	db *storage.DB
}

func NewHostGroupRepository(db *storage.DB) *HostGroupRepository {
	return &HostGroupRepository{db: db}
}

const groupSelect = `SELECT id, name, description, parent_id, created_at FROM host_groups`

func (r *HostGroupRepository) Insert(ctx context.Context, g *models.HostGroup) (int64, error) {
	if g.Name == "" {
		return 0, apperr.Validation("group name must not be empty")
	}
	if g.ParentID != nil {
		if err := r.checkNoCycle(ctx, 0, *g.ParentID); err != nil {
			return 0, err
		}
	}
	res, err := r.db.Raw().ExecContext(ctx, `
		INSERT INTO host_groups (name, description, parent_id, created_at) VALUES (?, ?, ?, ?)`,
		g.Name, g.Description, groupIDArg(g.ParentID), formatTime(g.CreatedAt))
	if err != nil {
		return 0, apperr.Storage("insert host group", err)
	}
	return res.LastInsertId()
}

func (r *HostGroupRepository) Update(ctx context.Context, g *models.HostGroup) error {
	if g.ParentID != nil {
		if err := r.checkNoCycle(ctx, g.ID, *g.ParentID); err != nil {
			return err
		}
	}
	res, err := r.db.Raw().ExecContext(ctx, `
		UPDATE host_groups SET name=?, description=?, parent_id=? WHERE id=?`,
		g.Name, g.Description, groupIDArg(g.ParentID), g.ID)
	if err != nil {
		return apperr.Storage("update host group", err)
	}
	return requireAffected(res, "host group")
}

// Remove deletes a group; children and member hosts have their references
// set to null (the foreign keys declare ON DELETE SET NULL), never cascaded.
func (r *HostGroupRepository) Remove(ctx context.Context, id int64) error {
	res, err := r.db.Raw().ExecContext(ctx, `DELETE FROM host_groups WHERE id=?`, id)
	if err != nil {
		return apperr.Storage("delete host group", err)
	}
	return requireAffected(res, "host group")
}

func (r *HostGroupRepository) FindByID(ctx context.Context, id int64) (*models.HostGroup, error) {
	row := r.db.Raw().QueryRowContext(ctx, groupSelect+` WHERE id=?`, id)
	return scanGroup(row)
}

func (r *HostGroupRepository) FindAll(ctx context.Context) ([]*models.HostGroup, error) {
	rows, err := r.db.Raw().QueryContext(ctx, groupSelect+` ORDER BY name`)
	if err != nil {
		return nil, apperr.Storage("list host groups", err)
	}
	defer rows.Close()
	return scanGroups(rows)
}

func (r *HostGroupRepository) FindRootGroups(ctx context.Context) ([]*models.HostGroup, error) {
	rows, err := r.db.Raw().QueryContext(ctx, groupSelect+` WHERE parent_id IS NULL ORDER BY name`)
	if err != nil {
		return nil, apperr.Storage("list root host groups", err)
	}
	defer rows.Close()
	return scanGroups(rows)
}

func (r *HostGroupRepository) FindByParentID(ctx context.Context, parentID int64) ([]*models.HostGroup, error) {
	rows, err := r.db.Raw().QueryContext(ctx, groupSelect+` WHERE parent_id=? ORDER BY name`, parentID)
	if err != nil {
		return nil, apperr.Storage("list child host groups", err)
	}
	defer rows.Close()
	return scanGroups(rows)
}

// checkNoCycle walks up from candidateParent and rejects the edit if it
// would ever reach id, which would turn the forest into a graph with a
// cycle (spec §3 HostGroup invariant).
func (r *HostGroupRepository) checkNoCycle(ctx context.Context, id, candidateParent int64) error {
	current := candidateParent
	for i := 0; i < 1000; i++ {
		if current == id {
			return apperr.Validation("setting this parent would create a cycle")
		}
		var parent sql.NullInt64
		err := r.db.Raw().QueryRowContext(ctx, `SELECT parent_id FROM host_groups WHERE id=?`, current).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) || !parent.Valid {
			return nil
		}
		if err != nil {
			return apperr.Storage("walk group ancestry", err)
		}
		current = parent.Int64
	}
	return apperr.Validation("group ancestry exceeds maximum depth")
}

func scanGroup(row rowScanner) (*models.HostGroup, error) {
	var g models.HostGroup
	var parentID sql.NullInt64
	var createdAt string
	err := row.Scan(&g.ID, &g.Name, &g.Description, &parentID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("host group not found")
	}
	if err != nil {
		return nil, apperr.Storage("scan host group", err)
	}
	if parentID.Valid {
		v := parentID.Int64
		g.ParentID = &v
	}
	g.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, apperr.Storage("parse group created_at", err)
	}
	return &g, nil
}

func scanGroups(rows *sql.Rows) ([]*models.HostGroup, error) {
	var out []*models.HostGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
