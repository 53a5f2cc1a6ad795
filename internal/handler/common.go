package handler // handler defines the Echo HTTP handlers of the booking API

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/service"
)

// RequestValidator adapts go-playground/validator to echo.Validator so
// handlers can call c.Validate on bound DTOs.
type RequestValidator struct {
	validator *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validator: validator.New()}
}

func (v *RequestValidator) Validate(i any) error {
	return v.validator.Struct(i)
}

// getUserID extracts the authenticated user id stored by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// bindValid binds the request body into dst and runs struct validation.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New("invalid field " + verrs[0].Field() + ": " + verrs[0].Tag())
		}
		return err
	}
	return nil
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": service.CodeValidationFailed})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// statusOf maps a service error kind to its HTTP status.
func statusOf(kind service.Kind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict, service.KindSoldOut:
		return http.StatusConflict
	case service.KindUnderage:
		return http.StatusForbidden
	case service.KindSessionInPast:
		return http.StatusUnprocessableEntity
	case service.KindValidationFailed:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError renders err.  Typed service errors carry their code and, for
// SoldOut, the requested and available seat counts; everything else is a
// logged 500 without details.
func writeError(c echo.Context, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		logger.WithComponent("http").WithError(err).
			WithField("route", c.Request().Method+" "+c.Path()).
			Error("request failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	body := echo.Map{"error": se.Message, "code": se.Code}
	if se.Kind == service.KindSoldOut {
		body["requested"] = se.Requested
		body["available"] = se.Available
	}
	return c.JSON(statusOf(se.Kind), body)
}
