package httpapi

import "time"

type optionResponse struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

type questionResponse struct {
	Index    int              `json:"index"`
	Total    int              `json:"total"`
	Progress int              `json:"progress"`
	Text     string           `json:"text"`
	Options  []optionResponse `json:"options"`
}

type resultResponse struct {
	SessionID  string     `json:"session_id,omitempty"`
	Correct    int        `json:"correct"`
	Total      int        `json:"total"`
	Reason     string     `json:"reason"`
	Message    string     `json:"message,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type sessionResponse struct {
	SessionID   string            `json:"session_id,omitempty"`
	Phase       string            `json:"phase"`
	Suspended   bool              `json:"suspended"`
	Answered    int               `json:"answered"`
	Correct     int               `json:"correct"`
	RemainingMs int64             `json:"remaining_ms"`
	Remaining   string            `json:"remaining"`
	Question    *questionResponse `json:"question,omitempty"`
	Result      *resultResponse   `json:"result,omitempty"`
	LastError   *errorResponse    `json:"last_error,omitempty"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type historyResponse struct {
	Results []resultResponse `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
