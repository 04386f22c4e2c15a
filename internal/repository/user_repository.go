package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/identity-access/internal/utils"
)

// User mirrors the 'users' table.  PasswordHash never leaves the handler
// layer in a response body.
type User struct {
	ID           uint64
	UserName     string
	NickName     string
	PasswordHash string
	Email        sql.NullString
	Phone        sql.NullString
	IsActive     bool
	CreatedBy    sql.NullString
	UpdatedBy    sql.NullString
	CreateTime   time.Time
	UpdateTime   time.Time
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = "id,user_name,nick_name,password_hash,email,phone,is_active,created_by,updated_by,create_time,update_time"

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.UserName, &u.NickName, &u.PasswordHash, &u.Email, &u.Phone,
		&u.IsActive, &u.CreatedBy, &u.UpdatedBy, &u.CreateTime, &u.UpdateTime)
	return u, err
}

// dupErr maps a MySQL duplicate-entry error (1062) onto the matching
// sentinel by looking at which unique index was violated.  The storage
// constraint is the final arbiter; a race past the pre-checks still lands
// here and yields the same Conflict error.
func dupErr(err error) error {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "1062") {
		return err
	}
	switch {
	case strings.Contains(msg, "user_name"):
		return ErrUserNameExists
	case strings.Contains(msg, "email"):
		return ErrEmailExists
	case strings.Contains(msg, "phone"):
		return ErrPhoneExists
	}
	return ErrUserNameExists
}

// Create registers a user.  Login name, email and phone are each checked for
// a pre-existing collision before the password is hashed, so a conflicting
// request never pays the bcrypt cost.  Email and phone are optional but
// unique when present.
func (r *UserRepo) Create(ctx context.Context, userName, nickName, password string, email, phone string, cost int, createdBy string) (uint64, error) {
	userName = strings.TrimSpace(userName)
	email = strings.ToLower(strings.TrimSpace(email))
	phone = strings.TrimSpace(phone)

	if err := r.checkCollisions(ctx, 0, userName, email, phone); err != nil {
		return 0, err
	}

	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}

	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (user_name, nick_name, password_hash, email, phone, created_by, updated_by) VALUES (?,?,?,?,?,?,?)",
		userName, nickName, hash, nullable(email), nullable(phone), createdBy, createdBy)
	if err != nil {
		return 0, dupErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// checkCollisions is the application-level uniqueness pre-check.  excludeID
// skips the user's own row on profile updates.  Empty email/phone are not
// checked (NULL never collides).
func (r *UserRepo) checkCollisions(ctx context.Context, excludeID uint64, userName, email, phone string) error {
	var n int
	if userName != "" {
		if err := r.DB.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM users WHERE user_name=? AND id<>?", userName, excludeID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrUserNameExists
		}
	}
	if email != "" {
		if err := r.DB.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM users WHERE email=? AND id<>?", email, excludeID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrEmailExists
		}
	}
	if phone != "" {
		if err := r.DB.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM users WHERE phone=? AND id<>?", phone, excludeID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrPhoneExists
		}
	}
	return nil
}

// GetByUserName fetches a user by login name.  Returns ErrNotFound so the
// handler can keep "no such user" and "wrong password" indistinguishable.
func (r *UserRepo) GetByUserName(ctx context.Context, userName string) (User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE user_name=? LIMIT 1", strings.TrimSpace(userName)))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// List returns a page of users ordered by creation time descending, plus
// the total row count for pagination metadata.
func (r *UserRepo) List(ctx context.Context, p utils.Page) ([]User, int64, error) {
	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userCols+" FROM users ORDER BY create_time DESC, id DESC LIMIT ? OFFSET ?",
		p.Size, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UpdateProfile mutates nickname, email, phone and the active flag.  Email
// and phone are re-checked for collisions against other users first.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, nickName, email, phone string, isActive bool, updatedBy string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	phone = strings.TrimSpace(phone)
	if err := r.checkCollisions(ctx, id, "", email, phone); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET nick_name=?, email=?, phone=?, is_active=?, updated_by=? WHERE id=?",
		nickName, nullable(email), nullable(phone), isActive, updatedBy, id)
	if err != nil {
		return dupErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// RowsAffected is 0 both for a missing row and for a no-op update,
		// so confirm existence before reporting not found.
		var exists int
		if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE id=?", id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// Delete hard-deletes a user and their role bindings.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
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

	var res sql.Result
	res, err = tx.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	_, err = tx.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id=?", id)
	return err
}

// ReplaceRoles swaps the user's full role set.  All-or-nothing: every
// requested role id must resolve or nothing changes.
func (r *UserRepo) ReplaceRoles(ctx context.Context, userID uint64, roleIDs []uint64) error {
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

	var exists int
	if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE id=?", userID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		err = ErrNotFound
		return err
	}

	if len(roleIDs) > 0 {
		q, args := inQuery("SELECT COUNT(*) FROM roles WHERE id IN", roleIDs)
		var n int
		if err = tx.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
			return err
		}
		if n != len(dedupe(roleIDs)) {
			err = ErrRolesMissing
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id=?", userID); err != nil {
		return err
	}
	for _, rid := range dedupe(roleIDs) {
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO user_roles (user_id, role_id) VALUES (?,?)", userID, rid); err != nil {
			return err
		}
	}
	return nil
}

// nullable converts an empty string into a SQL NULL so the unique indexes
// on email/phone ignore absent values.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
