package httpapi

import (
	"encoding/json"
	"net/http"

	"trivia-quiz/internal/logging"
	"trivia-quiz/internal/quiz"
)

const defaultHistoryLimit = 10

func (a *API) HandleSession(w http.ResponseWriter, r *http.Request) {
	view, err := a.sessionView(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	log := logging.WithContext(r.Context())
	defer r.Body.Close()

	var request answerRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	idx, ok := quiz.ParseOptionLetter(request.Answer)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "answer must be a single letter"})
		return
	}

	var confirmErr error
	err := a.dispatch.Do(r.Context(), func() {
		a.ctrl.Select(idx)
		confirmErr = a.ctrl.Confirm(r.Context())
	})
	if err == nil {
		err = confirmErr
	}
	if err != nil {
		log.WithError(err).WithField("answer", request.Answer).Debug("answer rejected")
		writeServiceError(w, err)
		return
	}

	a.respondWithSession(w, r, http.StatusOK)
}

func (a *API) HandleNew(w http.ResponseWriter, r *http.Request) {
	if err := a.dispatch.Do(r.Context(), func() { a.ctrl.FetchNewBatch(r.Context()) }); err != nil {
		writeServiceError(w, err)
		return
	}
	a.respondWithSession(w, r, http.StatusAccepted)
}

func (a *API) HandleSuspend(w http.ResponseWriter, r *http.Request) {
	if err := a.dispatch.Do(r.Context(), func() { a.ctrl.Suspend(r.Context()) }); err != nil {
		writeServiceError(w, err)
		return
	}
	a.respondWithSession(w, r, http.StatusOK)
}

func (a *API) HandleResume(w http.ResponseWriter, r *http.Request) {
	if err := a.dispatch.Do(r.Context(), func() { a.ctrl.Resume(r.Context()) }); err != nil {
		writeServiceError(w, err)
		return
	}
	a.respondWithSession(w, r, http.StatusOK)
}

func (a *API) HandleHistory(w http.ResponseWriter, r *http.Request) {
	log := logging.WithContext(r.Context())

	if a.history == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "history is not kept by this store"})
		return
	}

	limit, err := parseIntParam(r, "limit", defaultHistoryLimit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	results, err := a.history.ListResults(r.Context(), limit)
	if err != nil {
		log.WithError(err).Error("listing history failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list history"})
		return
	}

	response := historyResponse{Results: make([]resultResponse, 0, len(results))}
	for _, result := range results {
		response.Results = append(response.Results, toResultResponse(result))
	}
	writeJSON(w, http.StatusOK, response)
}

func (a *API) respondWithSession(w http.ResponseWriter, r *http.Request, status int) {
	view, err := a.sessionView(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, status, view)
}

func (a *API) sessionView(r *http.Request) (sessionResponse, error) {
	var view sessionResponse
	err := a.dispatch.Do(r.Context(), func() {
		state := a.ctrl.Snapshot()
		view = sessionResponse{
			SessionID:   state.SessionID,
			Phase:       a.ctrl.Phase().String(),
			Suspended:   a.ctrl.Suspended(),
			Answered:    state.QuestionsAnswered,
			Correct:     state.CorrectAnswers,
			RemainingMs: state.RemainingTime.Milliseconds(),
			Remaining:   quiz.FormatRemaining(state.RemainingTime),
		}
		if current, ok := a.ctrl.Current(); ok {
			view.Question = toQuestionResponse(current)
		}
	})
	if err != nil {
		return sessionResponse{}, err
	}

	finished, lastErr := a.events.latest()
	if finished != nil {
		result := toResultResponse(quiz.Result{Score: *finished})
		view.Result = &result
	}
	view.LastError = toErrorResponse(lastErr)
	return view, nil
}
