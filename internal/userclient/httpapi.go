package userclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrServiceUnavailable = errors.New("quiz service unavailable")

type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

type Option struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

type Question struct {
	Index    int      `json:"index"`
	Total    int      `json:"total"`
	Progress int      `json:"progress"`
	Text     string   `json:"text"`
	Options  []Option `json:"options"`
}

type Result struct {
	SessionID  string     `json:"session_id,omitempty"`
	Correct    int        `json:"correct"`
	Total      int        `json:"total"`
	Reason     string     `json:"reason"`
	Message    string     `json:"message,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type RemoteError struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Session mirrors GET /session.
type Session struct {
	SessionID   string       `json:"session_id,omitempty"`
	Phase       string       `json:"phase"`
	Suspended   bool         `json:"suspended"`
	Answered    int          `json:"answered"`
	Correct     int          `json:"correct"`
	RemainingMs int64        `json:"remaining_ms"`
	Remaining   string       `json:"remaining"`
	Question    *Question    `json:"question,omitempty"`
	Result      *Result      `json:"result,omitempty"`
	LastError   *RemoteError `json:"last_error,omitempty"`
}

const (
	phaseFetching = "fetching"
	phaseTerminal = "terminal"
)

type answerRequest struct {
	Answer string `json:"answer"`
}

type historyResponse struct {
	Results []Result `json:"results"`
}

func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	baseURL = strings.TrimSpace(baseURL)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultServer
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (c *HTTPClient) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *HTTPClient) Session(ctx context.Context) (Session, error) {
	var payload Session
	if err := c.doJSON(ctx, http.MethodGet, "/session", nil, &payload); err != nil {
		return Session{}, err
	}
	return payload, nil
}

func (c *HTTPClient) Answer(ctx context.Context, letter string) (Session, error) {
	var payload Session
	if err := c.doJSON(ctx, http.MethodPost, "/session/answer", answerRequest{Answer: letter}, &payload); err != nil {
		return Session{}, err
	}
	return payload, nil
}

func (c *HTTPClient) NewBatch(ctx context.Context) (Session, error) {
	return c.post(ctx, "/session/new")
}

func (c *HTTPClient) Suspend(ctx context.Context) (Session, error) {
	return c.post(ctx, "/session/suspend")
}

func (c *HTTPClient) Resume(ctx context.Context) (Session, error) {
	return c.post(ctx, "/session/resume")
}

func (c *HTTPClient) History(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	var payload historyResponse
	if err := c.doJSON(ctx, http.MethodGet, "/history?"+query.Encode(), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

func (c *HTTPClient) post(ctx context.Context, path string) (Session, error) {
	var payload Session
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &payload); err != nil {
		return Session{}, err
	}
	return payload, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) error {
	fullURL := c.baseURL + path

	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return err
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: response.StatusCode}
		var payload RemoteError
		if err := json.NewDecoder(response.Body).Decode(&payload); err == nil && strings.TrimSpace(payload.Error) != "" {
			apiErr.Message = payload.Error
			apiErr.Kind = payload.Kind
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return &apiErr
	}

	if responseBody == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(responseBody)
}
