package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/identity-access/internal/repository"
)

func newPermFixture(t *testing.T) (*PermissionHandler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPermissionHandler(repository.NewPermissionRepo(db)), mock
}

func TestPermissionCreateValidation(t *testing.T) {
	h, _ := newPermFixture(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing code", `{"name":"List users","type":"api"}`},
		{"missing name", `{"code":"user:list","type":"api"}`},
		{"bad type", `{"code":"user:list","name":"List users","type":"widget"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := roleRequest(http.MethodPost, "/v1/permissions", tc.body, "")
			require.NoError(t, h.Create(c))
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}
}

func TestPermissionCreateWithUnknownParent(t *testing.T) {
	h, mock := newPermFixture(t)

	mock.ExpectQuery("SELECT COUNT(.+) WHERE code").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT COUNT(.+) WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	c, rec := roleRequest(http.MethodPost, "/v1/permissions",
		`{"code":"user:list","name":"List users","type":"api","parentId":99}`, "")
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPermissionDeleteWithChildren(t *testing.T) {
	h, mock := newPermFixture(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT COUNT(.+) WHERE parent_id").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	c, rec := roleRequest(http.MethodDelete, "/v1/permissions/7", "", "7")
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPermissionTree(t *testing.T) {
	h, mock := newPermFixture(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "code", "name", "description", "type", "resource", "method",
		"parent_id", "sort", "is_active", "created_by", "updated_by", "create_time", "update_time",
	}).
		AddRow(1, "user", "User management", nil, "menu", nil, nil, nil, 0, true, nil, nil, now, now).
		AddRow(2, "user:list", "List users", nil, "api", "/v1/users", "GET", 1, 1, true, nil, nil, now, now)
	mock.ExpectQuery("SELECT (.+) FROM permissions ORDER BY").WillReturnRows(rows)

	c, rec := getRequest("/v1/permissions/tree")
	require.NoError(t, h.Tree(c))
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec).Data.([]interface{})
	require.Len(t, data, 2)
	root := data[0].(map[string]interface{})
	child := data[1].(map[string]interface{})
	assert.Nil(t, root["parentId"]) // roots serialize parentId as null
	assert.Equal(t, float64(1), child["parentId"])
}

func TestPermissionBatchDeleteEmpty(t *testing.T) {
	h, _ := newPermFixture(t)

	c, rec := roleRequest(http.MethodPost, "/v1/permissions/batch-delete", `{"ids":[]}`, "")
	require.NoError(t, h.BatchDelete(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
