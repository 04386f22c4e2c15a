package handler

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/identity-access/internal/middleware"
	"github.com/iliyamo/identity-access/internal/repository"
	"github.com/iliyamo/identity-access/internal/utils"
)

// PermissionHandler exposes the permission catalog.
type PermissionHandler struct {
	Perms *repository.PermissionRepo
}

func NewPermissionHandler(p *repository.PermissionRepo) *PermissionHandler {
	return &PermissionHandler{Perms: p}
}

// Valid permission type tags.
var permTypes = map[string]bool{"api": true, "menu": true, "button": true}

type permissionReq struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Resource    string  `json:"resource"`
	Method      string  `json:"method"`
	ParentID    *uint64 `json:"parentId"`
	Sort        int     `json:"sort"`
	IsActive    *bool   `json:"isActive"`
}

type batchDeleteReq struct {
	IDs []uint64 `json:"ids"`
}

// permissionView keeps parentId as a pointer so roots serialize as null,
// which is what client-side tree assembly keys on.
type permissionView struct {
	ID          uint64  `json:"id"`
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Type        string  `json:"type"`
	Resource    string  `json:"resource,omitempty"`
	Method      string  `json:"method,omitempty"`
	ParentID    *uint64 `json:"parentId"`
	Sort        int     `json:"sort"`
	IsActive    bool    `json:"isActive"`
}

func permViewOf(p repository.Permission) permissionView {
	v := permissionView{
		ID:          p.ID,
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description.String,
		Type:        p.Type,
		Resource:    p.Resource.String,
		Method:      p.Method.String,
		Sort:        p.Sort,
		IsActive:    p.IsActive,
	}
	if p.ParentID.Valid {
		pid := uint64(p.ParentID.Int64)
		v.ParentID = &pid
	}
	return v
}

func (req *permissionReq) validate() string {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if req.Code == "" || req.Name == "" {
		return "code and name are required"
	}
	if !permTypes[req.Type] {
		return "type must be one of api, menu, button"
	}
	return ""
}

func (req *permissionReq) toModel() repository.Permission {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	p := repository.Permission{
		Code:        req.Code,
		Name:        req.Name,
		Description: nullStr(req.Description),
		Type:        req.Type,
		Resource:    nullStr(req.Resource),
		Method:      nullStr(strings.ToUpper(req.Method)),
		Sort:        req.Sort,
		IsActive:    active,
	}
	if req.ParentID != nil {
		p.ParentID = sql.NullInt64{Int64: int64(*req.ParentID), Valid: true}
	}
	return p
}

// Create adds a permission node.  The parent, when given, must already
// exist, so the tree can only grow downward from existing nodes.
func (h *PermissionHandler) Create(c echo.Context) error {
	var req permissionReq
	if err := c.Bind(&req); err != nil {
		return utils.BadRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return utils.ValidationError(c, msg)
	}

	p := req.toModel()
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Perms.Create(ctx, &p, middleware.UserName(c)); err != nil {
		switch {
		case errors.Is(err, repository.ErrPermCodeExists):
			return utils.Conflict(c, "permission code already exists")
		case errors.Is(err, repository.ErrBadParent):
			return utils.NotFound(c, "parent permission does not exist")
		}
		return utils.InternalError(c)
	}
	return utils.Created(c, permViewOf(p))
}

// List returns a filtered page ordered by sort then creation time.
func (h *PermissionHandler) List(c echo.Context) error {
	p := utils.ClampPage(intQuery(c, "pageNum"), intQuery(c, "pageSize"))
	f := repository.PermissionFilter{
		Code:     c.QueryParam("code"),
		Name:     c.QueryParam("name"),
		Type:     strings.ToLower(c.QueryParam("type")),
		IsActive: boolQuery(c, "isActive"),
	}
	if s := c.QueryParam("parentId"); s != "" {
		if pid, err := strconv.ParseUint(s, 10, 64); err == nil {
			f.ParentID = &pid
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	perms, total, err := h.Perms.List(ctx, f, p)
	if err != nil {
		return utils.InternalError(c)
	}
	views := make([]permissionView, 0, len(perms))
	for _, perm := range perms {
		views = append(views, permViewOf(perm))
	}
	return utils.OK(c, utils.NewPageResult(views, total, p))
}

// Tree returns the full unpaginated catalog in tree-assembly order.  The
// response is the flat set; clients reconstruct parent/children linkage
// from parentId.
func (h *PermissionHandler) Tree(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	perms, err := h.Perms.ListAll(ctx)
	if err != nil {
		return utils.InternalError(c)
	}
	views := make([]permissionView, 0, len(perms))
	for _, perm := range perms {
		views = append(views, permViewOf(perm))
	}
	return utils.OK(c, views)
}

// Get returns one permission by id.
func (h *PermissionHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Perms.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.NotFound(c, "permission not found")
		}
		return utils.InternalError(c)
	}
	return utils.OK(c, permViewOf(*p))
}

// Update mutates a permission.  Reparenting onto itself or a descendant
// is rejected to keep the parent chain acyclic.
func (h *PermissionHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid id")
	}
	var req permissionReq
	if err := c.Bind(&req); err != nil {
		return utils.BadRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return utils.ValidationError(c, msg)
	}

	p := req.toModel()
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Perms.Update(ctx, id, &p, middleware.UserName(c)); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return utils.NotFound(c, "permission not found")
		case errors.Is(err, repository.ErrPermCodeExists):
			return utils.Conflict(c, "permission code already exists")
		case errors.Is(err, repository.ErrBadParent):
			return utils.Conflict(c, "invalid parent permission")
		}
		return utils.InternalError(c)
	}

	out, err := h.Perms.GetByID(ctx, id)
	if err != nil {
		return utils.InternalError(c)
	}
	return utils.OK(c, permViewOf(*out))
}

// Delete removes a permission; blocked while children reference it.
func (h *PermissionHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Perms.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return utils.NotFound(c, "permission not found")
		case errors.Is(err, repository.ErrPermHasChildren):
			return utils.Conflict(c, "permission has child permissions")
		}
		return utils.InternalError(c)
	}
	return utils.OK(c, nil)
}

// BatchDelete deletes a list of permissions, each with the same child
// check as single delete.
func (h *PermissionHandler) BatchDelete(c echo.Context) error {
	var req batchDeleteReq
	if err := c.Bind(&req); err != nil || len(req.IDs) == 0 {
		return utils.BadRequest(c, "ids required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Perms.DeleteBatch(ctx, req.IDs); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return utils.NotFound(c, "permission not found")
		case errors.Is(err, repository.ErrPermHasChildren):
			return utils.Conflict(c, "permission has child permissions")
		}
		return utils.InternalError(c)
	}
	return utils.OK(c, nil)
}
