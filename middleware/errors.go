package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"onechurch/apperr"
	"onechurch/logger"
)

// ErrorHandler writes the error envelope for the last error a handler
// attached with c.Error. Client errors go back untouched; server errors are
// logged with their stack. The stack is echoed only outside production.
func ErrorHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		status, message, details := describe(err)
		if status >= http.StatusInternalServerError {
			logger.Error.Printf("%s %s: %+v", c.Request.Method, c.Request.URL.Path, err)
		}

		body := gin.H{
			"success": false,
			"message": message,
			"errors":  details,
		}
		if !production {
			body["stack"] = fmt.Sprintf("%+v", err)
		}
		c.JSON(status, body)
	}
}

func describe(err error) (int, string, []string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fieldMessage(fe))
		}
		return http.StatusBadRequest, "Validation failed", details
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		details := ae.Errors
		if details == nil {
			details = []string{}
		}
		return ae.Status, ae.Message, details
	}
	return http.StatusInternalServerError, "Internal Server Error", []string{}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	if field != "" {
		field = strings.ToLower(field[:1]) + field[1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
