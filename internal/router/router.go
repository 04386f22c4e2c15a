package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/identity-access/internal/config"
	"github.com/iliyamo/identity-access/internal/handler"
	"github.com/iliyamo/identity-access/internal/middleware"
	"github.com/iliyamo/identity-access/internal/repository"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session endpoints and their middleware.
// Register, login and refresh live under /v1/auth and require no session;
// logout and /v1/me require a valid access token.  When rdb is non-nil the
// unauthenticated endpoints are rate limited per client.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, cfg config.Config, rdb *redis.Client) {
	g := e.Group("/v1/auth")
	if rdb != nil {
		rl := config.LoadRateLimitConfig()
		if rl.Enabled {
			g.Use(middleware.NewTokenBucket(rl, rdb))
		}
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	// Logout requires a live access token so that the middleware resolves
	// which user's tokens to revoke.
	auth := e.Group("/v1/auth")
	auth.Use(middleware.RequestID())
	auth.Use(middleware.JWTAuth(cfg.JWTAccessSecret, a.Tokens))
	auth.POST("/logout", a.Logout)

	me := e.Group("/v1")
	me.Use(middleware.RequestID())
	me.Use(middleware.JWTAuth(cfg.JWTAccessSecret, a.Tokens))
	me.GET("/me", a.Me)
}

// RegisterAdmin registers the user, role and permission management
// endpoints.  Every route requires a valid access token plus the admin
// role; the permission tree additionally allows any authenticated caller
// and is served through the Redis response cache when available.
func RegisterAdmin(e *echo.Echo, u *handler.UserHandler, r *handler.RoleHandler, p *handler.PermissionHandler,
	roles *repository.RoleRepo, cfg config.Config, tokens *repository.TokenRepo, rdb *redis.Client) {

	authed := e.Group("/v1")
	authed.Use(middleware.RequestID())
	authed.Use(middleware.JWTAuth(cfg.JWTAccessSecret, tokens))

	// The tree is read-heavy and identical for every caller, so it sits on
	// the authenticated group with the response cache in front of it.
	if rdb != nil {
		cc := config.LoadCacheConfig()
		if cc.Enabled {
			authed.GET("/permissions/tree", p.Tree, middleware.NewRedisCache(cc, rdb))
		} else {
			authed.GET("/permissions/tree", p.Tree)
		}
	} else {
		authed.GET("/permissions/tree", p.Tree)
	}

	admin := e.Group("/v1")
	admin.Use(middleware.RequestID())
	admin.Use(middleware.JWTAuth(cfg.JWTAccessSecret, tokens))
	admin.Use(middleware.RequireRole(roles, "admin"))

	admin.GET("/users", u.List)
	admin.GET("/users/:id", u.Get)
	admin.PUT("/users/:id", u.Update)
	admin.DELETE("/users/:id", u.Delete)
	admin.POST("/users/:id/roles", u.AssignRoles)

	admin.POST("/roles", r.Create)
	admin.GET("/roles", r.List)
	admin.GET("/roles/:id", r.Get)
	admin.PUT("/roles/:id", r.Update)
	admin.DELETE("/roles/:id", r.Delete)
	admin.POST("/roles/:id/permissions", r.AssignPermissions)

	admin.POST("/permissions", p.Create)
	admin.GET("/permissions", p.List)
	admin.GET("/permissions/:id", p.Get)
	admin.PUT("/permissions/:id", p.Update)
	admin.DELETE("/permissions/:id", p.Delete)
	admin.POST("/permissions/batch-delete", p.BatchDelete)
}
