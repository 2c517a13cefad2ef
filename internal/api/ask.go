package api

import (
	"net/http"
	"strings"
)

type askRequest struct {
	Question string `json:"question"`
}

type queryRequest struct {
	Code string `json:"code"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}
	summary := deps.Assistant.Summary()
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":     summary,
		"description": summary.Describe(),
	})
}

// handleAsk answers with the outcome payload. Failure outcomes are answers
// too, so both are written with 200.
func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}

	var request askRequest
	if err := decodeBody(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	outcome := deps.Assistant.Ask(r.Context(), request.Question)
	writeJSON(w, http.StatusOK, outcome.Payload())
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}

	var request queryRequest
	if err := decodeBody(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Code) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "CODE_REQUIRED", "code is required", false, nil)
		return
	}

	result := deps.Assistant.Query(r.Context(), request.Code)
	if !result.OK() {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, string(result.Err.Code), result.Err.Message, false, map[string]any{"text": result.Text()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
