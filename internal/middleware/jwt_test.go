package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/identity-access/internal/repository"
	"github.com/iliyamo/identity-access/internal/utils"
)

const testSecret = "test-access-secret"

func newTokens(t *testing.T) *repository.TokenRepo {
	mr := miniredis.RunT(t)
	return repository.NewTokenRepo(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func doRequest(t *testing.T, tokens *repository.TokenRepo, authHeader string) (*httptest.ResponseRecorder, echo.Context) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var captured echo.Context
	h := JWTAuth(testSecret, tokens)(func(c echo.Context) error {
		captured = c
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, captured
}

func TestJWTAuthValidToken(t *testing.T) {
	tokens := newTokens(t)
	st, err := utils.NewToken(testSecret, utils.TokenClaims{UserID: 5, UserName: "alice_01", Email: "a@example.com"}, 60)
	require.NoError(t, err)
	require.NoError(t, tokens.StoreAccess(context.Background(), 5, st.Token, time.Minute))

	rec, c := doRequest(t, tokens, "Bearer "+st.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, c)
	assert.Equal(t, uint64(5), UserID(c))
	assert.Equal(t, "alice_01", UserName(c))
}

func TestJWTAuthMissingHeader(t *testing.T) {
	rec, c := doRequest(t, newTokens(t), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, c)
}

func TestJWTAuthMalformedHeader(t *testing.T) {
	rec, _ := doRequest(t, newTokens(t), "Basic abc123")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthWrongSecret(t *testing.T) {
	st, err := utils.NewToken("some-other-secret", utils.TokenClaims{UserID: 5, UserName: "alice_01"}, 60)
	require.NoError(t, err)

	rec, _ := doRequest(t, newTokens(t), "Bearer "+st.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRevokedToken(t *testing.T) {
	tokens := newTokens(t)
	st, err := utils.NewToken(testSecret, utils.TokenClaims{UserID: 5, UserName: "alice_01"}, 60)
	require.NoError(t, err)

	// Signature is valid but no stored entry exists: the session was
	// logged out (or the store TTL lapsed), so the token is dead.
	rec, _ := doRequest(t, tokens, "Bearer "+st.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthSupersededToken(t *testing.T) {
	tokens := newTokens(t)
	old, err := utils.NewToken(testSecret, utils.TokenClaims{UserID: 5, UserName: "alice_01"}, 60)
	require.NoError(t, err)
	require.NoError(t, tokens.StoreAccess(context.Background(), 5, "a-newer-token", time.Minute))

	// The stored entry holds a newer token; the old one no longer matches.
	rec, _ := doRequest(t, tokens, "Bearer "+old.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserIDWithoutAuth(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Equal(t, uint64(0), UserID(c))
	assert.Equal(t, "", UserName(c))
}
