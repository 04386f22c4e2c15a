package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleRepoCreate(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewRoleRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM roles WHERE code").WillReturnRows(countRows(0))
	mock.ExpectQuery("SELECT COUNT(.+) FROM permissions").WillReturnRows(countRows(2))
	mock.ExpectExec("INSERT INTO roles").WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec("INSERT INTO role_permissions").WithArgs(3, 10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO role_permissions").WithArgs(3, 11).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	role := &Role{Code: "editor", Name: "Editor", IsActive: true}
	err := repo.Create(context.Background(), role, []uint64{10, 11}, "admin")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), role.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepoCreateCodeTaken(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewRoleRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM roles WHERE code").WillReturnRows(countRows(1))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &Role{Code: "editor", Name: "Editor"}, nil, "admin")
	assert.ErrorIs(t, err, ErrRoleCodeExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepoCreateMissingPermission(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewRoleRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM roles WHERE code").WillReturnRows(countRows(0))
	// Three ids requested, only two exist: the whole create fails.
	mock.ExpectQuery("SELECT COUNT(.+) FROM permissions").WillReturnRows(countRows(2))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &Role{Code: "editor", Name: "Editor"}, []uint64{1, 2, 99}, "admin")
	assert.ErrorIs(t, err, ErrPermsMissing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepoDeleteHeldByUsers(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewRoleRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM roles").WillReturnRows(countRows(1))
	mock.ExpectQuery("SELECT COUNT(.+) FROM user_roles").WillReturnRows(countRows(4))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 3)
	assert.ErrorIs(t, err, ErrRoleInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepoDelete(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewRoleRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM roles").WillReturnRows(countRows(1))
	mock.ExpectQuery("SELECT COUNT(.+) FROM user_roles").WillReturnRows(countRows(0))
	mock.ExpectExec("DELETE FROM role_permissions").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM roles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), 3)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepoDeleteMissing(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewRoleRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM roles").WillReturnRows(countRows(0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoleRepoReplacePermissionsRoleMissing(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewRoleRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM roles").WillReturnRows(countRows(0))
	mock.ExpectRollback()

	err := repo.ReplacePermissions(context.Background(), 99, []uint64{1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoleRepoReplacePermissionsAllOrNothing(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewRoleRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM roles").WillReturnRows(countRows(1))
	mock.ExpectQuery("SELECT COUNT(.+) FROM permissions").WillReturnRows(countRows(1))
	mock.ExpectRollback()

	err := repo.ReplacePermissions(context.Background(), 3, []uint64{1, 99})
	assert.ErrorIs(t, err, ErrPermsMissing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepoCodesByUser(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewRoleRepo(db)

	mock.ExpectQuery("SELECT r.code FROM roles").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("admin").AddRow("editor"))

	codes, err := repo.CodesByUser(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "editor"}, codes)
}

func TestRoleRepoGetByCodeMissing(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewRoleRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM roles WHERE code").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByCode(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
