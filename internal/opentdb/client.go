package opentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultURL    = "https://opentdb.com/api.php"
	defaultAmount = 10
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"

	TypeMultiple = "multiple"
	TypeBoolean  = "boolean"
)

// RawQuestion mirrors the OpenTriviaDB question payload.
type RawQuestion struct {
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// Params selects a batch. Zero values leave the filter out of the request,
// except Amount which falls back to 10.
type Params struct {
	Amount     int
	Category   int
	Difficulty string
	Type       string
}

type apiResponse struct {
	ResponseCode int           `json:"response_code"`
	Results      []RawQuestion `json:"results"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	return NewClientWithURL(DefaultURL, httpClient)
}

func NewClientWithURL(baseURL string, httpClient *http.Client) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (p Params) Validate() error {
	switch p.Difficulty {
	case "", DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("unknown difficulty %q", p.Difficulty)
	}
	switch p.Type {
	case "", TypeMultiple, TypeBoolean:
	default:
		return fmt.Errorf("unknown question type %q", p.Type)
	}
	if p.Category < 0 {
		return fmt.Errorf("category must not be negative, got %d", p.Category)
	}
	return nil
}

func (p Params) query() url.Values {
	amount := p.Amount
	if amount <= 0 {
		amount = defaultAmount
	}

	query := url.Values{}
	query.Set("amount", strconv.Itoa(amount))
	if p.Category > 0 {
		query.Set("category", strconv.Itoa(p.Category))
	}
	if p.Difficulty != "" {
		query.Set("difficulty", p.Difficulty)
	}
	if p.Type != "" {
		query.Set("type", p.Type)
	}
	return query
}

func (c *Client) FetchQuestions(ctx context.Context, params Params) ([]RawQuestion, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + "?" + params.query().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opentdb returned status %d", resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	if payload.ResponseCode != 0 {
		return nil, fmt.Errorf("opentdb response_code=%d", payload.ResponseCode)
	}

	return payload.Results, nil
}
