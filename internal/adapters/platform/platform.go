package platform

import (
	"log/slog"
	"net/http"
	"time"

	"signupboard/internal/domain"
)

// Config selects and configures the chat-platform transport.
type Config struct {
	Provider string
	BaseURL  string
	Token    string
	Timeout  time.Duration
}

// NewPlatform returns the transport named by config.Provider. "rest" talks to
// the platform's HTTP API; "noop" or anything unknown only logs.
func NewPlatform(config Config, fields domain.FieldRenderer, logger *slog.Logger) domain.Platform {
	switch config.Provider {
	case "rest":
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		return NewRESTClient(&http.Client{Timeout: timeout}, config.BaseURL, config.Token, fields)
	case "noop":
		return &noopPlatform{logger: logger}
	default:
		logger.Warn("unknown platform provider, using noop", "provider", config.Provider)
		return &noopPlatform{logger: logger}
	}
}
