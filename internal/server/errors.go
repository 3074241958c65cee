package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kingdombarber/insight/internal/app"
	"github.com/kingdombarber/insight/internal/insights"
	"github.com/kingdombarber/insight/internal/llm"
	"github.com/kingdombarber/insight/internal/observability"
	"github.com/kingdombarber/insight/internal/query"
)

type errorBody struct {
	Error   errorDetail `json:"error"`
	TraceID string      `json:"trace_id,omitempty"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, retryable bool) {
	writeJSON(w, status, errorBody{
		Error:   errorDetail{Code: code, Message: message, Retryable: retryable},
		TraceID: observability.TraceIDFromContext(r.Context()),
	})
}

var queryStatus = map[query.Kind]int{
	query.KindNoData:                http.StatusUnprocessableEntity,
	query.KindInvalidRequest:        http.StatusBadRequest,
	query.KindModelUnavailable:      http.StatusBadGateway,
	query.KindScriptExecutionFailed: http.StatusUnprocessableEntity,
	query.KindInterpretationFailed:  http.StatusBadGateway,
	query.KindCancelled:             http.StatusServiceUnavailable,
	query.KindPromptInvalid:         http.StatusInternalServerError,
}

// writeFailure maps a service error onto a status and error envelope.
// Internal details are logged, never returned.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var qerr *query.Error
	switch {
	case errors.As(err, &qerr):
		status, ok := queryStatus[qerr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		retryable := qerr.Kind == query.KindModelUnavailable || qerr.Kind == query.KindInterpretationFailed || qerr.Kind == query.KindCancelled
		writeError(w, r, status, string(qerr.Kind), qerr.UserMessage(), retryable)
	case errors.Is(err, insights.ErrInvalidRequest):
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error(), false)
	case errors.Is(err, insights.ErrNoData):
		writeError(w, r, http.StatusUnprocessableEntity, "no_data", "No hay datos para los filtros seleccionados.", false)
	case errors.Is(err, app.ErrPublishingDisabled):
		writeError(w, r, http.StatusConflict, "publishing_disabled", err.Error(), false)
	case errors.Is(err, app.ErrSourceUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "source_unavailable", "No se pudieron cargar los datos.", true)
	case errors.Is(err, llm.ErrModelUnavailable), errors.Is(err, llm.ErrEmptyCompletion):
		writeError(w, r, http.StatusBadGateway, "model_unavailable", "El modelo de IA no está disponible.", true)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, "cancelled", "La solicitud fue cancelada.", true)
	default:
		writeError(w, r, http.StatusInternalServerError, "internal", "internal error", false)
	}
	s.logger.Warn("request failed", "path", r.URL.Path, "trace_id", observability.TraceIDFromContext(r.Context()), "error", err)
}
