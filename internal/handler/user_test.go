package handler

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/identity-access/internal/repository"
	"github.com/iliyamo/identity-access/internal/utils"
)

func newUserFixture(t *testing.T) (*UserHandler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserHandler(repository.NewUserRepo(db)), mock
}

func getRequest(target string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	return c, rec
}

func userListRows(names ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "user_name", "nick_name", "password_hash", "email", "phone",
		"is_active", "created_by", "updated_by", "create_time", "update_time",
	})
	for i, n := range names {
		rows.AddRow(uint64(i+1), n, "Nick", "$2a$04$hash", nil, nil, true, nil, nil, time.Now(), time.Now())
	}
	return rows
}

func TestUserListEnvelope(t *testing.T) {
	h, mock := newUserFixture(t)

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(23))
	mock.ExpectQuery("SELECT (.+) FROM users ORDER BY").WithArgs(10, 10).
		WillReturnRows(userListRows("carol_99", "bob_user"))

	c, rec := getRequest("/v1/users?pageNum=2&pageSize=10")
	require.NoError(t, h.List(c))
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec).Data.(map[string]interface{})
	assert.Equal(t, float64(23), data["total"])
	assert.Equal(t, float64(2), data["pageNum"])
	assert.Equal(t, float64(3), data["totalPages"])
	assert.Equal(t, true, data["hasNext"])
	assert.Equal(t, true, data["hasPrev"])
	assert.Len(t, data["data"], 2)
	assert.NotContains(t, rec.Body.String(), "password_hash")
}

func TestUserListClampsOversizedPage(t *testing.T) {
	h, mock := newUserFixture(t)

	// pageSize=999 is clamped to 100 before it reaches the database.
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT (.+) FROM users ORDER BY").WithArgs(100, 0).
		WillReturnRows(userListRows())

	c, rec := getRequest("/v1/users?pageNum=1&pageSize=999")
	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetInvalidID(t *testing.T) {
	h, _ := newUserFixture(t)

	c, rec := getRequest("/v1/users/abc", "id", "abc")
	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserGetMissing(t *testing.T) {
	h, mock := newUserFixture(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").WillReturnError(sql.ErrNoRows)

	c, rec := getRequest("/v1/users/99", "id", "99")
	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserUpdateRequiresContactPoint(t *testing.T) {
	h, _ := newUserFixture(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/v1/users/5", strings.NewReader(`{"nickName":"New"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, utils.CodeValidationError, decodeEnvelope(t, rec).Code)
}

func TestUserAssignRolesUnknownRole(t *testing.T) {
	h, mock := newUserFixture(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM users").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT COUNT(.+) FROM roles").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/users/5/roles", strings.NewReader(`{"roleIds":[1,99]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.AssignRoles(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Message, "role ids")
}
