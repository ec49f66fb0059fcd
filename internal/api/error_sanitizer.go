package api

import (
	"errors"
	"net/http"

	"github.com/ignite/churn-radar/internal/datanorm"
	"github.com/ignite/churn-radar/internal/pkg/distlock"
	"github.com/ignite/churn-radar/internal/pkg/httputil"
	"github.com/ignite/churn-radar/internal/pkg/logger"
	"github.com/ignite/churn-radar/internal/scoring"
	"github.com/ignite/churn-radar/internal/service/rules"
	"github.com/ignite/churn-radar/internal/snapshot"
	"github.com/ignite/churn-radar/internal/suggest"
)

// Machine-readable error codes.
const (
	codeSchema       = "schema_error"
	codeEmptyInput   = "empty_input"
	codeRuleSet      = "invalid_rule_set"
	codeMissingField = "missing_field"
	codeNoSuggestion = "no_suggestion"
)

// respondError maps pipeline errors to HTTP responses. Client errors carry
// the error text; anything unrecognized is logged and answered with a
// generic 500 so internals never reach the caller.
func respondError(w http.ResponseWriter, err error) {
	var schemaErr *datanorm.SchemaError
	var ruleErr *scoring.RuleSetError
	var fieldErr *scoring.MissingFieldError

	switch {
	case errors.As(err, &schemaErr):
		httputil.ErrorWithCode(w, http.StatusUnprocessableEntity, codeSchema, schemaErr.Error(), map[string]any{
			"source": schemaErr.Source,
			"field":  schemaErr.Field,
			"row":    schemaErr.Row,
		})
	case errors.Is(err, datanorm.ErrEmptyInput):
		httputil.UnprocessableEntity(w, codeEmptyInput, err.Error())
	case errors.As(err, &ruleErr):
		httputil.ErrorWithCode(w, http.StatusUnprocessableEntity, codeRuleSet, ruleErr.Error(), map[string]any{
			"index": ruleErr.Index,
			"field": ruleErr.Field,
		})
	case errors.As(err, &fieldErr):
		httputil.UnprocessableEntity(w, codeMissingField, fieldErr.Error())
	case errors.Is(err, snapshot.ErrNotFound), errors.Is(err, rules.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, rules.ErrInvalidName), errors.Is(err, rules.ErrReservedName):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, distlock.ErrHeld):
		httputil.Error(w, http.StatusConflict, "a source load is already running")
	case errors.Is(err, distlock.ErrLost):
		httputil.Error(w, http.StatusConflict, "the source load lost its lock to another process")
	case errors.Is(err, suggest.ErrDisabled):
		httputil.ServiceUnavailable(w, err.Error())
	case errors.Is(err, suggest.ErrNoRules):
		logger.Warn("suggestion unusable", "component", "api", "error", err)
		httputil.ErrorWithCode(w, http.StatusBadGateway, codeNoSuggestion, "the model reply contained no usable rules", nil)
	default:
		httputil.InternalError(w, err)
	}
}
