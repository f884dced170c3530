package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"veracity/internal/deception"
)

// Client produces a deception report from an external classifier. Responses
// are opaque: callers must validate them against the engine contract before
// trusting them.
type Client interface {
	Name() string
	Classify(ctx context.Context, text string, loc deception.Locale) (deception.AnalysisResult, error)
}

const (
	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
)

type Config struct {
	Provider string
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// New builds the configured client. An empty provider returns nil without
// error: the caller runs on the local engine alone.
func New(cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, nil
	case ProviderHTTP:
		if strings.TrimSpace(cfg.Endpoint) == "" {
			return nil, fmt.Errorf("http classifier requires an endpoint")
		}
		return NewHTTPClient(cfg.Endpoint, cfg.APIKey, cfg.Timeout), nil
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.Endpoint), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}
