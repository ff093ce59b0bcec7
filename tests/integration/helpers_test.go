//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
)

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func baseURL() string {
	return envOrDefault("INTEGRATION_BASE_URL", "http://localhost:8080")
}

// doJSON sends payload (if any) as JSON and decodes the response into out (if non-nil).
func doJSON(t *testing.T, method, path string, payload, out any) int {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, fmt.Sprintf("%s%s", baseURL(), path), body)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func setUser(t *testing.T, name string) {
	t.Helper()
	if status := doJSON(t, http.MethodPut, "/v1/profile", map[string]string{"user": name}, nil); status != http.StatusOK {
		t.Fatalf("set user: unexpected status %d", status)
	}
}

// seedCustomQuestions adds n custom questions whose correct answer is "yes".
func seedCustomQuestions(t *testing.T, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var out struct {
			ID string `json:"id"`
		}
		status := doJSON(t, http.MethodPost, "/v1/custom-questions", map[string]any{
			"question": fmt.Sprintf("Integration question %d?", i+1),
			"options":  []string{"yes", "no", "maybe", "never"},
			"correct":  "yes",
		}, &out)
		if status != http.StatusCreated {
			t.Fatalf("add custom question: unexpected status %d", status)
		}
		ids = append(ids, out.ID)
	}
	t.Cleanup(func() {
		for _, id := range ids {
			doJSON(t, http.MethodDelete, "/v1/custom-questions/"+id, nil, nil)
		}
	})
	return ids
}
