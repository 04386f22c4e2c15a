// Package repository contains data access logic separated from HTTP handlers.
// This file defines sentinel error values shared across repositories so that
// handlers can translate storage failures into the proper HTTP responses
// without inspecting driver errors themselves.  Uniqueness pre-checks inside
// the repositories are an early exit only; the database constraints are the
// final arbiter, and a constraint violation that slips past a pre-check is
// translated into the same sentinel as the pre-check would have produced.
package repository

import "errors"

// ErrNotFound is returned when a row does not resolve by id or code.
// Handlers translate it into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrUserNameExists, ErrEmailExists and ErrPhoneExists report uniqueness
// collisions during registration or profile update.  Handlers translate
// them into HTTP 409.
var (
	ErrUserNameExists = errors.New("user name already exists")
	ErrEmailExists    = errors.New("email already exists")
	ErrPhoneExists    = errors.New("phone already exists")
)

// ErrRoleCodeExists reports a role code collision on create or update.
var ErrRoleCodeExists = errors.New("role code already exists")

// ErrRoleInUse blocks deletion of a role while any user still holds it.
var ErrRoleInUse = errors.New("role is assigned to users")

// ErrPermCodeExists reports a permission code collision on create or update.
var ErrPermCodeExists = errors.New("permission code already exists")

// ErrPermHasChildren blocks deletion of a permission that other permissions
// reference as their parent.  Deletion is blocked, never cascaded.
var ErrPermHasChildren = errors.New("permission has child permissions")

// ErrBadParent is returned when a permission's parentId does not resolve or
// a reparent would create a cycle (parent set to itself or a descendant).
var ErrBadParent = errors.New("invalid parent permission")

// ErrPermsMissing is returned by assignment operations when one or more of
// the requested permission ids do not resolve.  Assignment is all-or-nothing
// so the target's permission set is left untouched.
var ErrPermsMissing = errors.New("some permission ids do not exist")

// ErrRolesMissing is the user-role assignment counterpart of ErrPermsMissing.
var ErrRolesMissing = errors.New("some role ids do not exist")
