package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "strings" // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/identity-access/internal/repository"
    "github.com/iliyamo/identity-access/internal/utils"
)

// Context keys under which the authenticated identity is stashed.
const (
    CtxUserID   = "user_id"
    CtxUserName = "user_name"
    CtxEmail    = "email"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the token's subject claims into the request context.  The
// signature check against the access secret is only the first gate: the
// presented token must also match the value stored under the user's
// access_token key, because the store is the authority on revocation.  A
// token that is cryptographically valid but no longer stored (logout, or
// TTL expiry) is rejected.  This middleware wraps every protected route so
// handlers can read the identity via c.Get(CtxUserID) etc.
func JWTAuth(accessSecret string, tokens *repository.TokenRepo) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header is "Bearer " followed by the JWT.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return utils.Unauthorized(c, "missing bearer token")
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            tc, err := utils.ParseToken(accessSecret, raw)
            if err != nil {
                return utils.Unauthorized(c, "invalid or expired token")
            }

            // Server-side revocation check.  Absence or mismatch of the
            // stored entry invalidates the token regardless of its exp claim.
            stored, err := tokens.GetAccess(c.Request().Context(), tc.UserID)
            if err != nil || stored != raw {
                return utils.Unauthorized(c, "invalid or expired token")
            }

            c.Set(CtxUserID, tc.UserID)
            c.Set(CtxUserName, tc.UserName)
            c.Set(CtxEmail, tc.Email)
            return next(c)
        }
    }
}

// UserID extracts the authenticated user's id from context.  The zero value
// means no identity was attached (route not behind JWTAuth).
func UserID(c echo.Context) uint64 {
    if v, ok := c.Get(CtxUserID).(uint64); ok {
        return v
    }
    return 0
}

// UserName extracts the authenticated login name from context.
func UserName(c echo.Context) string {
    if v, ok := c.Get(CtxUserName).(string); ok {
        return v
    }
    return ""
}
