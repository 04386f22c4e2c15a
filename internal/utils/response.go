package utils

// Unified response envelope.  Every successful body is
// {code:0, message:"success", data}; every error body is
// {code, message, data:null, path, timestamp} so clients can always switch
// on code without sniffing the HTTP status line.

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Response codes.  0 means success; error codes align with the HTTP status
// they ride on.
const (
	CodeSuccess         = 0
	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeConflict        = 409
	CodeValidationError = 422
	CodeTooManyRequests = 429
	CodeInternalError   = 500
)

// Response is the body shape shared by success and error replies.
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	Path      string      `json:"path,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// OK writes a 200 success envelope.
func OK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Code: CodeSuccess, Message: "success", Data: data})
}

// Created writes a 201 success envelope.
func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{Code: CodeSuccess, Message: "success", Data: data})
}

// Fail writes an error envelope.  Data is always null; path and timestamp
// let clients correlate failures with their logs.  The message is the only
// detail exposed; internal errors never leak driver or query text.
func Fail(c echo.Context, httpStatus, code int, message string) error {
	return c.JSON(httpStatus, Response{
		Code:      code,
		Message:   message,
		Data:      nil,
		Path:      c.Request().URL.Path,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Convenience wrappers for the common failure classes.

func BadRequest(c echo.Context, message string) error {
	return Fail(c, http.StatusBadRequest, CodeBadRequest, message)
}

func Unauthorized(c echo.Context, message string) error {
	return Fail(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(c echo.Context, message string) error {
	return Fail(c, http.StatusForbidden, CodeForbidden, message)
}

func NotFound(c echo.Context, message string) error {
	return Fail(c, http.StatusNotFound, CodeNotFound, message)
}

func Conflict(c echo.Context, message string) error {
	return Fail(c, http.StatusConflict, CodeConflict, message)
}

func ValidationError(c echo.Context, message string) error {
	return Fail(c, http.StatusUnprocessableEntity, CodeValidationError, message)
}

func InternalError(c echo.Context) error {
	return Fail(c, http.StatusInternalServerError, CodeInternalError, "internal server error")
}
