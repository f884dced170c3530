package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"veracity/internal/deception"
)

const defaultHTTPTimeout = 15 * time.Second

// HTTPClient talks to a remote classifier exposing a single POST endpoint
// that accepts {"text","locale"} and answers with a result-shaped JSON body.
type HTTPClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Name() string { return ProviderHTTP }

type classifyRequest struct {
	Text   string `json:"text"`
	Locale string `json:"locale"`
}

func (c *HTTPClient) Classify(ctx context.Context, text string, loc deception.Locale) (deception.AnalysisResult, error) {
	payload, err := json.Marshal(classifyRequest{Text: text, Locale: string(loc)})
	if err != nil {
		return deception.AnalysisResult{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return deception.AnalysisResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return deception.AnalysisResult{}, fmt.Errorf("classifier request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return deception.AnalysisResult{}, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return deception.AnalysisResult{}, fmt.Errorf("classifier status %d: %s", res.StatusCode, truncateBody(body))
	}

	var result deception.AnalysisResult
	if err := json.Unmarshal(body, &result); err != nil {
		return deception.AnalysisResult{}, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

// truncateBody keeps error messages readable when a classifier answers with
// an HTML error page.
func truncateBody(body []byte) string {
	const limit = 300
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
