package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"homelet/api/internal/api/middleware"
	"homelet/api/internal/auth"
	"homelet/api/internal/services"
)

func init() {
	// Report binding failures under the JSON field names clients send.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// DataResponse wraps every successful payload.
type DataResponse struct {
	Data interface{} `json:"data"`
}

func sendData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, DataResponse{Data: data})
}

// bindingError converts a gin binding failure into a field-level ValidationError.
func bindingError(err error) *services.ValidationError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = describeFieldError(fe)
		}
		return &services.ValidationError{Fields: fields}
	}
	return services.NewValidationError("body", "malformed JSON")
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// sendError maps the service error taxonomy onto HTTP statuses.
func sendError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: verr.Fields})
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "Access denied"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found"})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Conflict"})
	case errors.Is(err, services.ErrGone):
		c.JSON(http.StatusGone, ErrorResponse{Error: "Expired"})
	default:
		log.Printf("Unexpected error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}

// principal returns the caller set by the auth middleware, answering 401 when absent.
func principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		sendError(c, services.ErrUnauthorized)
	}
	return p, ok
}

// pathID parses a positive integer path parameter, answering 400 otherwise.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		sendError(c, services.NewValidationError(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		sendError(c, services.NewValidationError(name, "must be a non-negative integer"))
		return 0, false
	}
	return v, true
}
