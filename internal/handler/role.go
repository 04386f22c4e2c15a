package handler

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/identity-access/internal/middleware"
	"github.com/iliyamo/identity-access/internal/repository"
	"github.com/iliyamo/identity-access/internal/utils"
)

// RoleHandler exposes the role registry.
type RoleHandler struct {
	Roles *repository.RoleRepo
}

func NewRoleHandler(r *repository.RoleRepo) *RoleHandler {
	return &RoleHandler{Roles: r}
}

type roleReq struct {
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Sort          int       `json:"sort"`
	IsActive      *bool     `json:"isActive"`
	PermissionIDs *[]uint64 `json:"permissionIds"`
}

type assignPermsReq struct {
	PermissionIDs []uint64 `json:"permissionIds"`
}

type roleView struct {
	ID          uint64           `json:"id"`
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Sort        int              `json:"sort"`
	IsActive    bool             `json:"isActive"`
	Permissions []permissionView `json:"permissions,omitempty"`
	Users       []userView       `json:"users,omitempty"`
}

func roleViewOf(r repository.Role) roleView {
	v := roleView{
		ID:          r.ID,
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description.String,
		Sort:        r.Sort,
		IsActive:    r.IsActive,
	}
	for _, p := range r.Permissions {
		v.Permissions = append(v.Permissions, permViewOf(p))
	}
	for _, u := range r.Users {
		v.Users = append(v.Users, viewOf(u))
	}
	return v
}

// Create registers a role.  An optional permissionIds list attaches
// permissions atomically; any unknown id rejects the whole request.
func (h *RoleHandler) Create(c echo.Context) error {
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return utils.BadRequest(c, "invalid body")
	}
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" || req.Name == "" {
		return utils.ValidationError(c, "code and name are required")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	role := repository.Role{
		Code:        req.Code,
		Name:        req.Name,
		Description: nullStr(req.Description),
		Sort:        req.Sort,
		IsActive:    active,
	}
	var permIDs []uint64
	if req.PermissionIDs != nil {
		permIDs = *req.PermissionIDs
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Roles.Create(ctx, &role, permIDs, middleware.UserName(c))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRoleCodeExists):
			return utils.Conflict(c, "role code already exists")
		case errors.Is(err, repository.ErrPermsMissing):
			return utils.NotFound(c, "some permission ids do not exist")
		}
		return utils.InternalError(c)
	}
	return utils.Created(c, roleViewOf(role))
}

// List returns a filtered page of roles.
func (h *RoleHandler) List(c echo.Context) error {
	p := utils.ClampPage(intQuery(c, "pageNum"), intQuery(c, "pageSize"))
	f := repository.RoleFilter{
		Code:     c.QueryParam("code"),
		Name:     c.QueryParam("name"),
		IsActive: boolQuery(c, "isActive"),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	roles, total, err := h.Roles.List(ctx, f, p)
	if err != nil {
		return utils.InternalError(c)
	}
	views := make([]roleView, 0, len(roles))
	for _, r := range roles {
		views = append(views, roleViewOf(r))
	}
	return utils.OK(c, utils.NewPageResult(views, total, p))
}

// Get returns one role with its permissions and users eager-loaded.
func (h *RoleHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role, err := h.Roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.NotFound(c, "role not found")
		}
		return utils.InternalError(c)
	}
	return utils.OK(c, roleViewOf(*role))
}

// Update mutates a role.  When permissionIds is present (even empty) the
// full permission set is replaced; empty clears it.
func (h *RoleHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid id")
	}
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return utils.BadRequest(c, "invalid body")
	}
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" || req.Name == "" {
		return utils.ValidationError(c, "code and name are required")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err = h.Roles.Update(ctx, id, repository.RoleUpdate{
		Code:          req.Code,
		Name:          req.Name,
		Description:   req.Description,
		Sort:          req.Sort,
		IsActive:      active,
		PermissionIDs: req.PermissionIDs,
	}, middleware.UserName(c))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return utils.NotFound(c, "role not found")
		case errors.Is(err, repository.ErrRoleCodeExists):
			return utils.Conflict(c, "role code already exists")
		case errors.Is(err, repository.ErrPermsMissing):
			return utils.NotFound(c, "some permission ids do not exist")
		}
		return utils.InternalError(c)
	}

	role, err := h.Roles.GetByID(ctx, id)
	if err != nil {
		return utils.InternalError(c)
	}
	return utils.OK(c, roleViewOf(*role))
}

// AssignPermissions replaces the role's full permission set.  Not additive;
// all-or-nothing on unknown ids.
func (h *RoleHandler) AssignPermissions(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid id")
	}
	var req assignPermsReq
	if err := c.Bind(&req); err != nil {
		return utils.BadRequest(c, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Roles.ReplacePermissions(ctx, id, req.PermissionIDs); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return utils.NotFound(c, "role not found")
		case errors.Is(err, repository.ErrPermsMissing):
			return utils.NotFound(c, "some permission ids do not exist")
		}
		return utils.InternalError(c)
	}

	role, err := h.Roles.GetByID(ctx, id)
	if err != nil {
		return utils.InternalError(c)
	}
	return utils.OK(c, roleViewOf(*role))
}

// Delete removes a role; blocked while any user still holds it.
func (h *RoleHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Roles.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return utils.NotFound(c, "role not found")
		case errors.Is(err, repository.ErrRoleInUse):
			return utils.Conflict(c, "role is assigned to users")
		}
		return utils.InternalError(c)
	}
	return utils.OK(c, nil)
}

// boolQuery parses an optional boolean query parameter; nil means unset.
func boolQuery(c echo.Context, name string) *bool {
	switch strings.ToLower(c.QueryParam(name)) {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	}
	return nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
