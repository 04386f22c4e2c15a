package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/identity-access/internal/utils"
)

// Permission mirrors the 'permissions' table.  A permission optionally
// points at a parent permission via ParentID, forming a tree that clients
// assemble themselves from the flat set.  Resource and Method bind api-type
// entries to a route and HTTP verb.
type Permission struct {
	ID          uint64
	Code        string
	Name        string
	Description sql.NullString
	Type        string
	Resource    sql.NullString
	Method      sql.NullString
	ParentID    sql.NullInt64
	Sort        int
	IsActive    bool
	CreatedBy   sql.NullString
	UpdatedBy   sql.NullString
	CreateTime  time.Time
	UpdateTime  time.Time
}

// PermissionFilter narrows List results.  Code and Name are substring
// matches; Type, ParentID and IsActive are exact when set.
type PermissionFilter struct {
	Code     string
	Name     string
	Type     string
	ParentID *uint64
	IsActive *bool
}

type PermissionRepo struct{ DB *sql.DB }

func NewPermissionRepo(db *sql.DB) *PermissionRepo { return &PermissionRepo{DB: db} }

const permCols = "id,code,name,description,type,resource,method,parent_id,sort,is_active,created_by,updated_by,create_time,update_time"

func scanPermission(row interface{ Scan(...interface{}) error }) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Type, &p.Resource, &p.Method,
		&p.ParentID, &p.Sort, &p.IsActive, &p.CreatedBy, &p.UpdatedBy, &p.CreateTime, &p.UpdateTime)
	return p, err
}

func permDupErr(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "1062") {
		return ErrPermCodeExists
	}
	return err
}

// Create inserts a permission.  The code must be unique and, when a parent
// is given, the parent must already exist; a permission therefore can never
// be created inside a cycle.
func (r *PermissionRepo) Create(ctx context.Context, p *Permission, createdBy string) error {
	var n int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM permissions WHERE code=?", p.Code).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrPermCodeExists
	}
	if p.ParentID.Valid {
		if err := r.DB.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM permissions WHERE id=?", p.ParentID.Int64).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return ErrBadParent
		}
	}

	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO permissions (code, name, description, type, resource, method, parent_id, sort, is_active, created_by, updated_by) VALUES (?,?,?,?,?,?,?,?,?,?,?)",
		p.Code, p.Name, p.Description, p.Type, p.Resource, p.Method, p.ParentID, p.Sort, p.IsActive, createdBy, createdBy)
	if err != nil {
		return permDupErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// List returns a filtered page ordered by sort ascending then creation time
// descending.
func (r *PermissionRepo) List(ctx context.Context, f PermissionFilter, p utils.Page) ([]Permission, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if f.Code != "" {
		where = append(where, "code LIKE ?")
		args = append(args, "%"+f.Code+"%")
	}
	if f.Name != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+f.Name+"%")
	}
	if f.Type != "" {
		where = append(where, "type=?")
		args = append(args, f.Type)
	}
	if f.ParentID != nil {
		where = append(where, "parent_id=?")
		args = append(args, *f.ParentID)
	}
	if f.IsActive != nil {
		where = append(where, "is_active=?")
		args = append(args, *f.IsActive)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM permissions WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + permCols + " FROM permissions WHERE " + cond +
		" ORDER BY sort ASC, create_time DESC LIMIT ? OFFSET ?"
	rows, err := r.DB.QueryContext(ctx, q, append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListAll returns the full unpaginated set in tree-assembly order.  The
// catalog hands out the flat list; nesting by parent_id is the client's job.
func (r *PermissionRepo) ListAll(ctx context.Context) ([]Permission, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+permCols+" FROM permissions ORDER BY sort ASC, create_time DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID fetches a permission by id.
func (r *PermissionRepo) GetByID(ctx context.Context, id uint64) (*Permission, error) {
	p, err := scanPermission(r.DB.QueryRowContext(ctx,
		"SELECT "+permCols+" FROM permissions WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByCode fetches a permission by its unique code.
func (r *PermissionRepo) GetByCode(ctx context.Context, code string) (*Permission, error) {
	p, err := scanPermission(r.DB.QueryRowContext(ctx,
		"SELECT "+permCols+" FROM permissions WHERE code=? LIMIT 1", code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update mutates a permission.  A code change is re-checked against all
// other permissions.  A parent change must not point at the permission
// itself or any of its descendants, which keeps the parent chain acyclic.
func (r *PermissionRepo) Update(ctx context.Context, id uint64, p *Permission, updatedBy string) error {
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var n int
	if p.Code != cur.Code {
		if err := r.DB.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM permissions WHERE code=? AND id<>?", p.Code, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrPermCodeExists
		}
	}

	if p.ParentID.Valid {
		if uint64(p.ParentID.Int64) == id {
			return ErrBadParent
		}
		ok, err := r.validParent(ctx, id, uint64(p.ParentID.Int64))
		if err != nil {
			return err
		}
		if !ok {
			return ErrBadParent
		}
	}

	_, err = r.DB.ExecContext(ctx,
		"UPDATE permissions SET code=?, name=?, description=?, type=?, resource=?, method=?, parent_id=?, sort=?, is_active=?, updated_by=? WHERE id=?",
		p.Code, p.Name, p.Description, p.Type, p.Resource, p.Method, p.ParentID, p.Sort, p.IsActive, updatedBy, id)
	if err != nil {
		return permDupErr(err)
	}
	return nil
}

// validParent walks the parent chain upward from the candidate parent and
// rejects it when the chain passes through id (a reparent onto a descendant)
// or when the candidate does not exist.  The walk keeps a visited set so a
// malformed chain already in the table cannot loop forever.
func (r *PermissionRepo) validParent(ctx context.Context, id, parentID uint64) (bool, error) {
	visited := map[uint64]bool{}
	cur := parentID
	for {
		if cur == id || visited[cur] {
			return false, nil
		}
		visited[cur] = true
		var next sql.NullInt64
		err := r.DB.QueryRowContext(ctx,
			"SELECT parent_id FROM permissions WHERE id=?", cur).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			// First hop missing means the requested parent does not exist.
			return len(visited) > 1, nil
		}
		if err != nil {
			return false, err
		}
		if !next.Valid {
			return true, nil
		}
		cur = uint64(next.Int64)
	}
}

// Delete removes a permission unless other permissions reference it as
// their parent.
func (r *PermissionRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			_ = tx.Commit()
		}
	}()

	var n int
	if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM permissions WHERE id=?", id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		err = ErrNotFound
		return err
	}
	if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM permissions WHERE parent_id=?", id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		err = ErrPermHasChildren
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM role_permissions WHERE permission_id=?", id); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "DELETE FROM permissions WHERE id=?", id)
	return err
}

// DeleteBatch deletes each id in turn with the same child check.  The first
// failure stops the batch; earlier deletions stand, matching per-id delete
// semantics.
func (r *PermissionRepo) DeleteBatch(ctx context.Context, ids []uint64) error {
	for _, id := range dedupe(ids) {
		if err := r.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
