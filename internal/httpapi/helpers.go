package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"trivia-quiz/internal/loop"
	"trivia-quiz/internal/quiz"
	"trivia-quiz/internal/session"
)

func writeServiceError(w http.ResponseWriter, err error) {
	kind := quiz.KindOf(err)
	switch {
	case kind == quiz.KindNoSelection:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "select one of the listed options", Kind: kind.String()})
	case kind == quiz.KindIndexOutOfRange:
		writeJSON(w, http.StatusConflict, errorResponse{Error: "no question is awaiting an answer", Kind: kind.String()})
	case kind == quiz.KindSuspended:
		writeJSON(w, http.StatusConflict, errorResponse{Error: "session is suspended, resume it first", Kind: kind.String()})
	case kind == quiz.KindSourceUnavailable:
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "failed to fetch questions", Kind: kind.String()})
	case errors.Is(err, loop.ErrStopped):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "session is shutting down"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "request failed"})
	}
}

func toErrorResponse(err error) *errorResponse {
	if err == nil {
		return nil
	}
	return &errorResponse{Error: err.Error(), Kind: quiz.KindOf(err).String()}
}

func toQuestionResponse(p session.Presentation) *questionResponse {
	options := make([]optionResponse, 0, len(p.Options))
	for idx, text := range p.Options {
		options = append(options, optionResponse{
			Letter: quiz.OptionLetter(idx),
			Text:   text,
		})
	}
	return &questionResponse{
		Index:    p.Index,
		Total:    p.Total,
		Progress: p.Progress(),
		Text:     p.Text,
		Options:  options,
	}
}

func toResultResponse(result quiz.Result) resultResponse {
	response := resultResponse{
		SessionID: result.SessionID,
		Correct:   result.Correct,
		Total:     result.Total,
		Reason:    string(result.Reason),
		Message:   result.Message(),
	}
	if !result.FinishedAt.IsZero() {
		finishedAt := result.FinishedAt.UTC()
		response.FinishedAt = &finishedAt
	}
	return response
}

func parseIntParam(r *http.Request, key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return parsed, nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
