package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator plugs go-playground/validator into echo so handlers can
// call c.Validate on their request DTOs.
type RequestValidator struct {
	v *validator.Validate
}

func NewValidator() *RequestValidator {
	return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate returns validator.ValidationErrors for an invalid struct. The
// error handler turns them into a 400 listing the failing fields.
func (rv *RequestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

var _ echo.Validator = (*RequestValidator)(nil)

// bindValid binds the request into dst and validates it.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return err
	}
	return c.Validate(dst)
}
