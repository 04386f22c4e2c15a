package middleware // middleware provides shared request processing for handlers

import (
    "github.com/labstack/echo/v4" // echo provides middleware chaining and context

    "github.com/iliyamo/identity-access/internal/repository"
    "github.com/iliyamo/identity-access/internal/utils"
)

// RequireRole returns a middleware that grants access when the caller holds
// at least one of the required role codes (OR semantics).  Roles are
// resolved from the database on each request via the caller's user_roles
// rows; only active roles count.  It assumes JWTAuth already stashed the
// user id in the context.  Denial is 403; a missing identity is 401.
func RequireRole(roles *repository.RoleRepo, codes ...string) echo.MiddlewareFunc {
    // Build a set of required roles for constant-time lookups.
    required := make(map[string]bool, len(codes))
    for _, code := range codes {
        required[code] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            uid := UserID(c)
            if uid == 0 {
                return utils.Unauthorized(c, "authentication required")
            }
            held, err := roles.CodesByUser(c.Request().Context(), uid)
            if err != nil {
                return utils.InternalError(c)
            }
            for _, code := range held {
                if required[code] {
                    return next(c)
                }
            }
            return utils.Forbidden(c, "insufficient role")
        }
    }
}

// RequirePermission is the permission-code counterpart of RequireRole: the
// caller's permission codes are the union across all of their active roles,
// and any one of the required codes grants access.
func RequirePermission(roles *repository.RoleRepo, codes ...string) echo.MiddlewareFunc {
    required := make(map[string]bool, len(codes))
    for _, code := range codes {
        required[code] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            uid := UserID(c)
            if uid == 0 {
                return utils.Unauthorized(c, "authentication required")
            }
            held, err := roles.PermCodesByUser(c.Request().Context(), uid)
            if err != nil {
                return utils.InternalError(c)
            }
            for _, code := range held {
                if required[code] {
                    return next(c)
                }
            }
            return utils.Forbidden(c, "insufficient permission")
        }
    }
}
