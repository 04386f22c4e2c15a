package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/identity-access/internal/repository"
	"github.com/iliyamo/identity-access/internal/utils"
)

func newRoleFixture(t *testing.T) (*RoleHandler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRoleHandler(repository.NewRoleRepo(db)), mock
}

func roleRequest(method, target, body string, id string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	return c, rec
}

func TestRoleCreate(t *testing.T) {
	h, mock := newRoleFixture(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM roles WHERE code").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO roles").WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	c, rec := roleRequest(http.MethodPost, "/v1/roles", `{"code":"editor","name":"Editor"}`, "")
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	data := decodeEnvelope(t, rec).Data.(map[string]interface{})
	assert.Equal(t, float64(3), data["id"])
	assert.Equal(t, "editor", data["code"])
	assert.Equal(t, true, data["isActive"]) // defaults to active
}

func TestRoleCreateMissingFields(t *testing.T) {
	h, _ := newRoleFixture(t)

	c, rec := roleRequest(http.MethodPost, "/v1/roles", `{"code":"  "}`, "")
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRoleCreateDuplicateCode(t *testing.T) {
	h, mock := newRoleFixture(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM roles WHERE code").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	c, rec := roleRequest(http.MethodPost, "/v1/roles", `{"code":"editor","name":"Editor"}`, "")
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, utils.CodeConflict, decodeEnvelope(t, rec).Code)
}

func TestRoleCreateUnknownPermission(t *testing.T) {
	h, mock := newRoleFixture(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM roles WHERE code").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT COUNT(.+) FROM permissions").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	c, rec := roleRequest(http.MethodPost, "/v1/roles",
		`{"code":"editor","name":"Editor","permissionIds":[1,99]}`, "")
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Message, "permission ids")
}

func TestRoleDeleteInUse(t *testing.T) {
	h, mock := newRoleFixture(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM roles").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT COUNT(.+) FROM user_roles").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	c, rec := roleRequest(http.MethodDelete, "/v1/roles/3", "", "3")
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRoleAssignPermissionsUnknownID(t *testing.T) {
	h, mock := newRoleFixture(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM roles").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT COUNT(.+) FROM permissions").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	c, rec := roleRequest(http.MethodPost, "/v1/roles/3/permissions", `{"permissionIds":[99]}`, "3")
	require.NoError(t, h.AssignPermissions(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
