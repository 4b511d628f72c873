package offlinequeue

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
)

// Executor replays one QueuedAction against the remote API and reports
// what happened. statusCode is 0 and hasStatus is false for transport
// failures that never reached a server (network error, timeout).
type Executor interface {
	Execute(ctx context.Context, action model.QueuedAction) (statusCode int, hasStatus bool, err error)
}

// TokenSource supplies the bearer token for outbound mutation requests.
// The token itself is opaque to the core (spec.md §6): whatever issued it
// and however it is refreshed is the auth service's concern, not this
// queue's.
type TokenSource func(ctx context.Context) (string, error)

// HTTPClientConfig configures an HTTPExecutor, mirroring the pack's
// BaseURL/Timeout/Logger client-config idiom.
type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Token   TokenSource
	Logger  *zap.Logger
}

// HTTPExecutor is the production Executor: POST {BaseURL}/{actionKind}
// with the queued payload as the JSON body (spec.md §6).
type HTTPExecutor struct {
	baseURL string
	token   TokenSource
	client  *http.Client
	log     *zap.Logger
}

var _ Executor = (*HTTPExecutor)(nil)

// NewHTTPExecutor returns an HTTPExecutor built from cfg. A zero Timeout
// defaults to 30s, the mutation timeout in spec.md §5.
func NewHTTPExecutor(cfg HTTPClientConfig) *HTTPExecutor {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPExecutor{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		log:     logger,
	}
}

func (e *HTTPExecutor) Execute(ctx context.Context, action model.QueuedAction) (int, bool, error) {
	url := fmt.Sprintf("%s/%s", e.baseURL, action.Kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(action.Payload))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	if e.token != nil {
		tok, err := e.token(ctx)
		if err != nil {
			return 0, false, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, true, nil
}
