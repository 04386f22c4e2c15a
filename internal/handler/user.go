package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/identity-access/internal/middleware"
	"github.com/iliyamo/identity-access/internal/repository"
	"github.com/iliyamo/identity-access/internal/utils"
)

// UserHandler exposes the user directory: paginated listing, lookup,
// profile mutation, hard delete and role assignment.
type UserHandler struct {
	Users *repository.UserRepo
}

func NewUserHandler(u *repository.UserRepo) *UserHandler {
	return &UserHandler{Users: u}
}

type updateUserReq struct {
	NickName string `json:"nickName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	IsActive *bool  `json:"isActive"`
}

type assignRolesReq struct {
	RoleIDs []uint64 `json:"roleIds"`
}

// List returns a page of users ordered by creation time descending.  The
// password hash is stripped by the projection.
func (h *UserHandler) List(c echo.Context) error {
	p := utils.ClampPage(intQuery(c, "pageNum"), intQuery(c, "pageSize"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, total, err := h.Users.List(ctx, p)
	if err != nil {
		return utils.InternalError(c)
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, viewOf(u))
	}
	return utils.OK(c, utils.NewPageResult(views, total, p))
}

// Get returns one user by id.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.NotFound(c, "user not found")
		}
		return utils.InternalError(c)
	}
	return utils.OK(c, viewOf(u))
}

// Update mutates profile fields.  Email and phone keep their uniqueness
// and format rules; the email-or-phone rule applies here exactly as it
// does at registration.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid id")
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return utils.BadRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)

	if req.Email == "" && req.Phone == "" {
		return utils.ValidationError(c, "email or phone is required")
	}
	if req.Email != "" && !utils.EmailRE.MatchString(req.Email) {
		return utils.ValidationError(c, "invalid email")
	}
	if req.Phone != "" && !utils.PhoneRE.MatchString(req.Phone) {
		return utils.ValidationError(c, "invalid phone")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err = h.Users.UpdateProfile(ctx, id, req.NickName, req.Email, req.Phone, active, middleware.UserName(c))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return utils.NotFound(c, "user not found")
		case errors.Is(err, repository.ErrEmailExists):
			return utils.Conflict(c, "email already exists")
		case errors.Is(err, repository.ErrPhoneExists):
			return utils.Conflict(c, "phone already exists")
		}
		return utils.InternalError(c)
	}

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return utils.InternalError(c)
	}
	return utils.OK(c, viewOf(u))
}

// Delete hard-deletes a user.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.NotFound(c, "user not found")
		}
		return utils.InternalError(c)
	}
	return utils.OK(c, nil)
}

// AssignRoles replaces the user's full role set.  All-or-nothing: any
// unknown role id rejects the whole request and leaves the set unchanged.
func (h *UserHandler) AssignRoles(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid id")
	}
	var req assignRolesReq
	if err := c.Bind(&req); err != nil {
		return utils.BadRequest(c, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.ReplaceRoles(ctx, id, req.RoleIDs); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return utils.NotFound(c, "user not found")
		case errors.Is(err, repository.ErrRolesMissing):
			return utils.NotFound(c, "some role ids do not exist")
		}
		return utils.InternalError(c)
	}
	return utils.OK(c, nil)
}

// ----- shared param helpers -----

func pathID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

func intQuery(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}
