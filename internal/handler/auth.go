package handler

import (
    "context"  // provides context with cancellation for DB calls
    "errors"   // sentinel comparisons against repository errors
    "strings"  // string normalization of request fields
    "time"     // timeouts for DB calls and event timestamps

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/iliyamo/identity-access/internal/config"     // app configuration
    "github.com/iliyamo/identity-access/internal/middleware"  // identity extraction from context
    "github.com/iliyamo/identity-access/internal/queue"       // audit event payloads
    "github.com/iliyamo/identity-access/internal/repository"  // DB and token repositories
    queue_publisher "github.com/iliyamo/identity-access/internal/service" // broker publisher
    "github.com/iliyamo/identity-access/internal/utils"       // hashing, tokens, responses
)

// AuthHandler bundles dependencies for the session lifecycle endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Roles  *repository.RoleRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, r *repository.RoleRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Roles: r, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	UserName string `json:"userName"`
	NickName string `json:"nickName"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}
type loginReq struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

// userView is the sanitized user projection; the password hash never
// appears in any response body.
type userView struct {
	ID       uint64 `json:"id"`
	UserName string `json:"userName"`
	NickName string `json:"nickName"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	IsActive bool   `json:"isActive"`
}

func viewOf(u repository.User) userView {
	return userView{
		ID:       u.ID,
		UserName: u.UserName,
		NickName: u.NickName,
		Email:    u.Email.String,
		Phone:    u.Phone.String,
		IsActive: u.IsActive,
	}
}

type loginResp struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	TokenType    string   `json:"tokenType"`
	ExpiresIn    int      `json:"expiresIn"`
	User         userView `json:"user"`
}

// Register creates a new account.  Uniqueness of login name, email and
// phone is checked before hashing; a Conflict aborts the request without
// paying the bcrypt cost.  No tokens are issued here, login does that.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return utils.BadRequest(c, "invalid body")
	}
	req.UserName = strings.TrimSpace(req.UserName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)

	if !utils.UserNameRE.MatchString(req.UserName) {
		return utils.ValidationError(c, "userName must be 4-20 letters, digits or underscores")
	}
	if !utils.CheckPasswordComplexity(req.Password) {
		return utils.ValidationError(c, "password must be at least 8 chars with upper, lower and digit")
	}
	// One uniform rule: an account must be reachable by email or phone.
	if req.Email == "" && req.Phone == "" {
		return utils.ValidationError(c, "email or phone is required")
	}
	if req.Email != "" && !utils.EmailRE.MatchString(req.Email) {
		return utils.ValidationError(c, "invalid email")
	}
	if req.Phone != "" && !utils.PhoneRE.MatchString(req.Phone) {
		return utils.ValidationError(c, "invalid phone")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.UserName, req.NickName, req.Password, req.Email, req.Phone, h.Cfg.BcryptCost, req.UserName)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNameExists):
			return utils.Conflict(c, "user name already exists")
		case errors.Is(err, repository.ErrEmailExists):
			return utils.Conflict(c, "email already exists")
		case errors.Is(err, repository.ErrPhoneExists):
			return utils.Conflict(c, "phone already exists")
		}
		return utils.InternalError(c)
	}

	// Audit event, fire-and-forget: broker trouble never fails registration.
	evt := queue.UserRegisteredEvent{
		UserID:       uid,
		UserName:     req.UserName,
		NickName:     req.NickName,
		Email:        req.Email,
		Phone:        req.Phone,
		RegisteredAt: time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pcancel()
		_ = queue_publisher.PublishUserRegistered(pctx, evt)
	}()

	return utils.Created(c, userView{
		ID:       uid,
		UserName: req.UserName,
		NickName: req.NickName,
		Email:    req.Email,
		Phone:    req.Phone,
		IsActive: true,
	})
}

// Login verifies credentials, mints the access/refresh token pair and
// records both in the token store with their respective TTLs.  The error
// message is identical for an unknown user and a wrong password so the
// endpoint cannot be used to enumerate accounts.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return utils.BadRequest(c, "invalid body")
	}
	req.UserName = strings.TrimSpace(req.UserName)
	if req.UserName == "" || req.Password == "" {
		return utils.BadRequest(c, "userName/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUserName(ctx, req.UserName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.Unauthorized(c, "invalid credentials")
		}
		return utils.InternalError(c)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return utils.Unauthorized(c, "invalid credentials")
	}
	// Inactive is reported only after the password verified, so a 403 never
	// confirms a login name by itself.
	if !u.IsActive {
		return utils.Forbidden(c, "account is disabled")
	}

	tc := utils.TokenClaims{UserID: u.ID, UserName: u.UserName, Email: u.Email.String}
	access, err := utils.NewToken(h.Cfg.JWTAccessSecret, tc, h.Cfg.AccessTTLSec)
	if err != nil {
		return utils.InternalError(c)
	}
	refresh, err := utils.NewToken(h.Cfg.JWTRefreshSecret, tc, h.Cfg.RefreshTTLSec)
	if err != nil {
		return utils.InternalError(c)
	}
	if err := h.Tokens.StoreAccess(ctx, u.ID, access.Token, time.Duration(h.Cfg.AccessTTLSec)*time.Second); err != nil {
		return utils.InternalError(c)
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, refresh.Token, time.Duration(h.Cfg.RefreshTTLSec)*time.Second); err != nil {
		return utils.InternalError(c)
	}

	evt := queue.UserLoginEvent{
		UserID:    u.ID,
		UserName:  u.UserName,
		ClientIP:  c.RealIP(),
		LoginAt:   time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID(c),
	}
	go func() {
		pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pcancel()
		_ = queue_publisher.PublishUserLogin(pctx, evt)
	}()

	return utils.OK(c, loginResp{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		TokenType:    "Bearer",
		ExpiresIn:    h.Cfg.AccessTTLSec,
		User:         viewOf(u),
	})
}

// Refresh exchanges a valid refresh token for a new access token.  The
// refresh token itself is not rotated.  Signature, expiry and the stored
// copy are all checked; every failure collapses into the same 401 so the
// caller cannot tell expired from tampered from revoked.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return utils.BadRequest(c, "refreshToken required")
	}
	raw := strings.TrimSpace(req.RefreshToken)

	tc, err := utils.ParseToken(h.Cfg.JWTRefreshSecret, raw)
	if err != nil {
		return utils.Unauthorized(c, "invalid refresh token")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// The store is the authority: a cryptographically valid token that is
	// absent or different server-side belongs to a logged-out session.
	stored, err := h.Tokens.GetRefresh(ctx, tc.UserID)
	if err != nil || stored != raw {
		return utils.Unauthorized(c, "invalid refresh token")
	}

	access, err := utils.NewToken(h.Cfg.JWTAccessSecret, tc, h.Cfg.AccessTTLSec)
	if err != nil {
		return utils.InternalError(c)
	}
	if err := h.Tokens.StoreAccess(ctx, tc.UserID, access.Token, time.Duration(h.Cfg.AccessTTLSec)*time.Second); err != nil {
		return utils.InternalError(c)
	}

	return utils.OK(c, echo.Map{
		"accessToken": access.Token,
		"tokenType":   "Bearer",
		"expiresIn":   h.Cfg.AccessTTLSec,
	})
}

// Logout deletes both stored tokens for the caller.  Deleting absent keys
// is fine, so repeated logout is idempotent.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == 0 {
		return utils.Unauthorized(c, "authentication required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Tokens.RevokeAll(ctx, uid); err != nil {
		return utils.InternalError(c)
	}
	return utils.OK(c, echo.Map{"message": "logged out"})
}

// Me returns the caller's profile plus their resolved role codes.
func (h *AuthHandler) Me(c echo.Context) error {
	uid := middleware.UserID(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.NotFound(c, "user not found")
		}
		return utils.InternalError(c)
	}
	roles, err := h.Roles.CodesByUser(ctx, uid)
	if err != nil {
		return utils.InternalError(c)
	}
	return utils.OK(c, echo.Map{"user": viewOf(u), "roles": roles})
}

func requestID(c echo.Context) string {
	if v, ok := c.Get("request_id").(string); ok {
		return v
	}
	return ""
}
