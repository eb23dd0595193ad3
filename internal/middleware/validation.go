package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/temcen/ekskulrec/internal/validation"
)

const ValidatedBodyKey = "validatedBody"

// ValidationMiddleware checks request bodies against the bundled JSON schemas.
type ValidationMiddleware struct {
	validator *validation.SchemaValidator
}

func NewValidationMiddleware(validator *validation.SchemaValidator) *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validator,
	}
}

// ValidateGenerateRequest accepts an empty body or one matching the
// generate-request schema.
func (vm *ValidationMiddleware) ValidateGenerateRequest() gin.HandlerFunc {
	return vm.validateRequestBody(validation.GenerateRequestSchema, true)
}

func (vm *ValidationMiddleware) validateRequestBody(schemaName string, optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			vm.sendValidationError(c, "BODY_READ_ERROR", "Failed to read request body", nil)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		if len(bytes.TrimSpace(bodyBytes)) == 0 {
			if optional {
				c.Next()
				return
			}
			vm.sendValidationError(c, "EMPTY_BODY", "Request body is required", nil)
			return
		}

		if !json.Valid(bodyBytes) {
			vm.sendValidationError(c, "INVALID_JSON", "Request body must be valid JSON", nil)
			return
		}

		result := vm.validator.Validate(schemaName, bodyBytes)
		if !result.Valid {
			vm.sendValidationErrors(c, result.Errors)
			return
		}

		c.Set(ValidatedBodyKey, bodyBytes)
		c.Next()
	}
}

// RequireUUIDParam rejects requests whose path parameter is not a UUID.
func (vm *ValidationMiddleware) RequireUUIDParam(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := uuid.Parse(c.Param(name)); err != nil {
			vm.sendValidationError(c, "INVALID_USER_ID", "Invalid user ID format", map[string]interface{}{
				"parameter": name,
			})
			return
		}
		c.Next()
	}
}

func (vm *ValidationMiddleware) sendValidationError(c *gin.Context, code, message string, details map[string]interface{}) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if len(details) > 0 {
		body["details"] = details
	}
	if id := GetRequestID(c); id != "" {
		body["request_id"] = id
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": body})
}

func (vm *ValidationMiddleware) sendValidationErrors(c *gin.Context, errors []validation.ValidationError) {
	fieldErrors := make(map[string][]string)
	for _, err := range errors {
		if err.Field != "" {
			fieldErrors[err.Field] = append(fieldErrors[err.Field], err.Message)
		}
	}

	vm.sendValidationError(c, "VALIDATION_ERROR", "Request validation failed", map[string]interface{}{
		"field_errors": fieldErrors,
	})
}
