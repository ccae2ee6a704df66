package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/palisade-admin/palisade/internal/query"
	"github.com/palisade-admin/palisade/internal/store"
	appErrors "github.com/palisade-admin/palisade/pkg/errors"
	"github.com/palisade-admin/palisade/pkg/response"
	appValidator "github.com/palisade-admin/palisade/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)))
		return false
	}

	return true
}

func formatValidationError(err error) string {
	if err == nil {
		return "invalid request payload"
	}

	if ve, ok := err.(appValidator.ValidationErrors); ok {
		if len(ve) == 0 {
			return "invalid request payload"
		}

		messages := make([]string, 0, len(ve))
		for _, failure := range ve {
			field := prettifyFieldName(failure.Field)
			switch failure.Tag {
			case "required":
				messages = append(messages, fmt.Sprintf("%s is required", field))
			case "min":
				messages = append(messages, fmt.Sprintf("%s must be at least %s characters", field, failure.Param))
			case "max":
				messages = append(messages, fmt.Sprintf("%s must be at most %s characters", field, failure.Param))
			default:
				if failure.Param != "" {
					messages = append(messages, fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param))
				} else {
					messages = append(messages, fmt.Sprintf("%s failed validation: %s", field, failure.Tag))
				}
			}
		}
		return strings.Join(messages, "; ")
	}

	return "invalid request payload"
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToLower(name)
}

// parseIDParam reads the :id route parameter as an unsigned identity.
func parseIDParam(c *gin.Context) (uint, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.Error(c, appErrors.NewBadRequest("invalid id"))
		return 0, false
	}
	return uint(id), true
}

// pageRequest reads pagination and ordering parameters from the query string.
func pageRequest(c *gin.Context) store.PageRequest {
	var req store.PageRequest
	_ = c.ShouldBindQuery(&req)
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Size <= 0 {
		req.Size = store.DefaultPageSize
	}
	return req
}

// collectFilters builds a filter set from the whitelisted query-string keys. Keys may carry
// an operator suffix; missing keys are skipped. Values are coerced from their string form so
// boolean and numeric columns compare correctly.
func collectFilters(c *gin.Context, keys ...string) query.Filters {
	filters := query.Filters{}
	for _, key := range keys {
		raw, ok := c.GetQuery(key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		filters[key] = coerceQueryValue(strings.TrimSpace(raw))
	}
	if len(filters) == 0 {
		return nil
	}
	return filters
}

func coerceQueryValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}
