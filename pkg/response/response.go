// Package response renders the success/failure envelope shared by every
// endpoint.
package response

import (
	"github.com/labstack/echo/v4"

	"github.com/healthgraph/radar/pkg/apperr"
	"github.com/healthgraph/radar/pkg/pagination"
)

// Body is the success envelope.
type Body struct {
	Success    bool             `json:"success"`
	Data       interface{}      `json:"data,omitempty"`
	Pagination *pagination.Meta `json:"pagination,omitempty"`
	Message    string           `json:"message,omitempty"`
}

// ErrorDetail describes a failure.
type ErrorDetail struct {
	Code    apperr.Kind `json:"code"`
	Message string      `json:"message"`
}

// ErrorBody is the failure envelope.
type ErrorBody struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

func OK(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Body{Success: true, Data: data})
}

func Message(c echo.Context, status int, msg string, data interface{}) error {
	return c.JSON(status, Body{Success: true, Data: data, Message: msg})
}

func Page(c echo.Context, status int, data interface{}, meta *pagination.Meta) error {
	return c.JSON(status, Body{Success: true, Data: data, Pagination: meta})
}

func Fail(c echo.Context, status int, kind apperr.Kind, msg string) error {
	return c.JSON(status, ErrorBody{Error: ErrorDetail{Code: kind, Message: msg}})
}
