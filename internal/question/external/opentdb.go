package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoResults is returned when OpenTDB has nothing for the requested filters.
var ErrNoResults = errors.New("opentdb returned no results")

// OpenTDB response codes (https://opentdb.com/api_config.php).
const (
	responseSuccess   = 0
	responseNoResults = 1
)

// OpenTDBClient fetches questions from the Open Trivia DB (no API key).
type OpenTDBClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOpenTDBClient(baseURL string, httpClient *http.Client) *OpenTDBClient {
	if baseURL == "" {
		baseURL = "https://opentdb.com"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	return &OpenTDBClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// OpenTDBRequest mirrors the api.php query parameters.
type OpenTDBRequest struct {
	Amount     int
	Category   string
	Difficulty string
	Type       string
}

type OpenTDBQuestion struct {
	Category        string   `json:"category"`
	Type            string   `json:"type"`
	Difficulty      string   `json:"difficulty"`
	Question        string   `json:"question"`
	CorrectAnswer   string   `json:"correct_answer"`
	IncorrectAnswer []string `json:"incorrect_answers"`
}

type openTDBResponse struct {
	ResponseCode int               `json:"response_code"`
	Results      []OpenTDBQuestion `json:"results"`
}

func (c *OpenTDBClient) Fetch(ctx context.Context, r OpenTDBRequest) ([]OpenTDBQuestion, error) {
	values := url.Values{}
	values.Set("amount", fmt.Sprint(r.Amount))
	if r.Type != "" {
		values.Set("type", r.Type)
	}
	if r.Category != "" {
		values.Set("category", r.Category)
	}
	if r.Difficulty != "" {
		values.Set("difficulty", r.Difficulty)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api.php?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("opentdb non-200: %d", resp.StatusCode)
	}

	var payload openTDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode opentdb payload: %w", err)
	}
	switch payload.ResponseCode {
	case responseSuccess:
	case responseNoResults:
		return nil, ErrNoResults
	default:
		return nil, fmt.Errorf("opentdb response code %d", payload.ResponseCode)
	}
	if len(payload.Results) == 0 {
		return nil, ErrNoResults
	}
	return payload.Results, nil
}
