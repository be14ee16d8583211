package httptransport

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rockfordlhotka/calendar-mcp/internal/fanout"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
	"github.com/rockfordlhotka/calendar-mcp/internal/routing"
	"github.com/rockfordlhotka/calendar-mcp/internal/service"
)

// Response is the envelope every endpoint replies with.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// Success replies 200 with data.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Msg: "ok", Data: data})
}

// Created replies 201 with data.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Code: http.StatusCreated, Msg: "created", Data: data})
}

// BadRequest replies 400.
func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, msg, nil)
}

// Error replies with an arbitrary status. data may be nil.
func Error(c *gin.Context, httpCode int, msg string, data any) {
	c.JSON(httpCode, Response{Code: httpCode, Msg: msg, Data: data})
}

// statusFor maps service and fan-out errors to HTTP status codes.
func statusFor(err error) int {
	var fe *fanout.FailureError
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnknownAccount),
		errors.Is(err, fanout.ErrNoTargets),
		errors.Is(err, provider.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, routing.ErrNoRoute):
		return http.StatusUnprocessableEntity
	case errors.Is(err, provider.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, fanout.ErrCanceled), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.As(err, &fe):
		switch fe.Failure.Kind {
		case fanout.FailureUnauthenticated:
			return http.StatusUnauthorized
		case fanout.FailureTimeout:
			return http.StatusGatewayTimeout
		case fanout.FailureUnknownProvider:
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Fail replies with the status mapped from err.
func Fail(c *gin.Context, err error, data any) {
	_ = c.Error(err)
	Error(c, statusFor(err), err.Error(), data)
}
