package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/identity-access/internal/utils"
)

// Role mirrors the 'roles' table.  Permissions and Users are populated only
// by GetByID, which eager-loads both associations.
type Role struct {
	ID          uint64
	Code        string
	Name        string
	Description sql.NullString
	Sort        int
	IsActive    bool
	CreatedBy   sql.NullString
	UpdatedBy   sql.NullString
	CreateTime  time.Time
	UpdateTime  time.Time

	Permissions []Permission
	Users       []User
}

// RoleFilter narrows List results.  Code and Name are substring matches;
// IsActive is exact when non-nil.
type RoleFilter struct {
	Code     string
	Name     string
	IsActive *bool
}

type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

const roleCols = "id,code,name,description,sort,is_active,created_by,updated_by,create_time,update_time"

func scanRole(row interface{ Scan(...interface{}) error }) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Code, &r.Name, &r.Description, &r.Sort, &r.IsActive,
		&r.CreatedBy, &r.UpdatedBy, &r.CreateTime, &r.UpdateTime)
	return r, err
}

func roleDupErr(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "1062") {
		return ErrRoleCodeExists
	}
	return err
}

// Create inserts a role and, when permissionIDs is non-empty, attaches the
// listed permissions in the same transaction.  Every listed id must resolve
// or the whole create fails with ErrPermsMissing.
func (r *RoleRepo) Create(ctx context.Context, role *Role, permissionIDs []uint64, createdBy string) error {
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
	if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles WHERE code=?", role.Code).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		err = ErrRoleCodeExists
		return err
	}

	if len(permissionIDs) > 0 {
		q, args := inQuery("SELECT COUNT(*) FROM permissions WHERE id IN", permissionIDs)
		if err = tx.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
			return err
		}
		if n != len(dedupe(permissionIDs)) {
			err = ErrPermsMissing
			return err
		}
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx,
		"INSERT INTO roles (code, name, description, sort, is_active, created_by, updated_by) VALUES (?,?,?,?,?,?,?)",
		role.Code, role.Name, role.Description, role.Sort, role.IsActive, createdBy, createdBy)
	if err != nil {
		err = roleDupErr(err)
		return err
	}
	id, lerr := res.LastInsertId()
	if lerr != nil {
		err = lerr
		return err
	}
	role.ID = uint64(id)

	for _, pid := range dedupe(permissionIDs) {
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO role_permissions (role_id, permission_id) VALUES (?,?)", role.ID, pid); err != nil {
			return err
		}
	}
	return nil
}

// List returns a filtered page of roles ordered by sort ascending then
// creation time descending.
func (r *RoleRepo) List(ctx context.Context, f RoleFilter, p utils.Page) ([]Role, int64, error) {
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
	if f.IsActive != nil {
		where = append(where, "is_active=?")
		args = append(args, *f.IsActive)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + roleCols + " FROM roles WHERE " + cond +
		" ORDER BY sort ASC, create_time DESC LIMIT ? OFFSET ?"
	rows, err := r.DB.QueryContext(ctx, q, append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetByID fetches a role with its permissions and the users holding it.
func (r *RoleRepo) GetByID(ctx context.Context, id uint64) (*Role, error) {
	role, err := scanRole(r.DB.QueryRowContext(ctx,
		"SELECT "+roleCols+" FROM roles WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	role.Permissions, err = r.permissionsOf(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT u.`+strings.ReplaceAll(userCols, ",", ",u.")+`
		 FROM users u JOIN user_roles ur ON ur.user_id = u.id
		 WHERE ur.role_id = ? ORDER BY u.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		role.Users = append(role.Users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &role, nil
}

// GetByCode fetches a role by its unique code, with permissions attached.
func (r *RoleRepo) GetByCode(ctx context.Context, code string) (*Role, error) {
	role, err := scanRole(r.DB.QueryRowContext(ctx,
		"SELECT "+roleCols+" FROM roles WHERE code=? LIMIT 1", code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	role.Permissions, err = r.permissionsOf(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepo) permissionsOf(ctx context.Context, roleID uint64) ([]Permission, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT p.`+strings.ReplaceAll(permCols, ",", ",p.")+`
		 FROM permissions p JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = ? ORDER BY p.sort ASC, p.create_time DESC`, roleID)
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

// RoleUpdate carries the mutable role fields.  PermissionIDs is a
// three-state field: nil leaves the permission set untouched, an empty
// slice clears it, a non-empty slice replaces it.
type RoleUpdate struct {
	Code          string
	Name          string
	Description   string
	Sort          int
	IsActive      bool
	PermissionIDs *[]uint64
}

// Update mutates a role.  A code change is re-checked for collisions
// against all other roles.  Permission replacement is all-or-nothing.
func (r *RoleRepo) Update(ctx context.Context, id uint64, upd RoleUpdate, updatedBy string) error {
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
	if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles WHERE id=?", id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		err = ErrNotFound
		return err
	}
	if err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM roles WHERE code=? AND id<>?", upd.Code, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		err = ErrRoleCodeExists
		return err
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE roles SET code=?, name=?, description=?, sort=?, is_active=?, updated_by=? WHERE id=?",
		upd.Code, upd.Name, nullable(upd.Description), upd.Sort, upd.IsActive, updatedBy, id); err != nil {
		err = roleDupErr(err)
		return err
	}

	if upd.PermissionIDs != nil {
		err = replacePermissionsTx(ctx, tx, id, *upd.PermissionIDs)
	}
	return err
}

// ReplacePermissions swaps the role's full permission set (the dedicated
// assignment endpoint).  Fails with ErrNotFound when the role is missing and
// ErrPermsMissing when any requested id does not resolve; in both cases the
// existing set is untouched.
func (r *RoleRepo) ReplacePermissions(ctx context.Context, roleID uint64, permissionIDs []uint64) error {
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
	if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles WHERE id=?", roleID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		err = ErrNotFound
		return err
	}
	err = replacePermissionsTx(ctx, tx, roleID, permissionIDs)
	return err
}

func replacePermissionsTx(ctx context.Context, tx *sql.Tx, roleID uint64, permissionIDs []uint64) error {
	if len(permissionIDs) > 0 {
		q, args := inQuery("SELECT COUNT(*) FROM permissions WHERE id IN", permissionIDs)
		var n int
		if err := tx.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
			return err
		}
		if n != len(dedupe(permissionIDs)) {
			return ErrPermsMissing
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM role_permissions WHERE role_id=?", roleID); err != nil {
		return err
	}
	for _, pid := range dedupe(permissionIDs) {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO role_permissions (role_id, permission_id) VALUES (?,?)", roleID, pid); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a role unless any user still holds it.
func (r *RoleRepo) Delete(ctx context.Context, id uint64) error {
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
	if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles WHERE id=?", id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		err = ErrNotFound
		return err
	}
	if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_roles WHERE role_id=?", id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		err = ErrRoleInUse
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM role_permissions WHERE role_id=?", id); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "DELETE FROM roles WHERE id=?", id)
	return err
}

// CodesByUser resolves the caller's active role codes for the gate.
func (r *RoleRepo) CodesByUser(ctx context.Context, userID uint64) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT r.code FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = ? AND r.is_active = 1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PermCodesByUser flattens the union of permission codes across all of the
// user's active roles.  Inactive permissions never grant access.
func (r *RoleRepo) PermCodesByUser(ctx context.Context, userID uint64) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT DISTINCT p.code FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 JOIN roles r ON r.id = rp.role_id
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = ? AND r.is_active = 1 AND p.is_active = 1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
