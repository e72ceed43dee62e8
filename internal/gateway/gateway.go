// Package gateway is the single egress point to the decision model API.
// Every worker decision, creative proposal and validation verdict goes
// through Gateway.Complete.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/autocorp/engine/internal/retry"
	"github.com/autocorp/engine/internal/simerr"
)

const defaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// Observer receives one observation per finished call, including failed
// ones. The kind is a simerr.Kind label.
type Observer interface {
	ObserveDecisionCall(kind string, elapsed time.Duration)
}

// Gateway is a chat-completions client with pacing, bounded retries and
// exponential backoff. It is safe for concurrent use; pacing applies per
// call, not globally.
type Gateway struct {
	endpoint    string
	apiKey      string
	pacingDelay time.Duration
	retryCfg    retry.Config
	client      *http.Client
	sleep       retry.Sleeper
	observer    Observer
	logger      zerolog.Logger
}

// Option configures the gateway.
type Option func(*Gateway)

// WithEndpoint overrides the chat-completions URL.
func WithEndpoint(url string) Option {
	return func(g *Gateway) { g.endpoint = url }
}

// WithPacingDelay sets the fixed delay applied before every attempt.
func WithPacingDelay(d time.Duration) Option {
	return func(g *Gateway) { g.pacingDelay = d }
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg retry.Config) Option {
	return func(g *Gateway) { g.retryCfg = cfg }
}

// WithHTTPClient overrides the HTTP client, including its timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithSleeper overrides how the pacing delay waits.
func WithSleeper(s retry.Sleeper) Option {
	return func(g *Gateway) { g.sleep = s }
}

// WithObserver installs a per-call metrics observer.
func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

// New builds a gateway. The API key is resolved eagerly: first from
// apiKey, then from keyFile; when neither yields a key the gateway is
// still returned but every Complete call fails with simerr.ErrKeyMissing
// before touching the network.
func New(apiKey, keyFile string, callTimeout time.Duration, logger zerolog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		endpoint:    defaultEndpoint,
		apiKey:      resolveKey(apiKey, keyFile),
		pacingDelay: time.Second,
		retryCfg:    retry.DefaultConfig(),
		client:      &http.Client{Timeout: callTimeout},
		sleep:       retry.ContextSleeper,
		logger:      logger.With().Str("component", "gateway").Logger(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func resolveKey(apiKey, keyFile string) string {
	if k := strings.TrimSpace(apiKey); k != "" {
		return k
	}
	if keyFile == "" {
		return ""
	}
	raw, err := os.ReadFile(keyFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// ---- chat-completions wire types ----

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a single-turn prompt to the given model and returns the
// raw reply text. Malformed 200 responses are terminal; HTTP errors are
// retried when simerr.IsRetryable says so.
func (g *Gateway) Complete(ctx context.Context, modelRef, prompt string) (string, error) {
	if g.apiKey == "" {
		g.observe(simerr.ErrKeyMissing, 0)
		return "", simerr.ErrKeyMissing
	}

	start := time.Now()
	var reply string
	err := retry.Do(ctx, g.retryCfg, func(ctx context.Context) error {
		if g.pacingDelay > 0 {
			if err := g.sleep(ctx, g.pacingDelay); err != nil {
				return err
			}
		}
		var attemptErr error
		reply, attemptErr = g.attempt(ctx, modelRef, prompt)
		return attemptErr
	})
	g.observe(err, time.Since(start))
	if err != nil {
		g.logger.Warn().Err(err).Str("model", modelRef).Msg("decision call failed")
		return "", err
	}
	return reply, nil
}

func (g *Gateway) attempt(ctx context.Context, modelRef, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    modelRef,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return "", fmt.Errorf("decision call: %w", err)
		case errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err):
			return "", fmt.Errorf("decision call: %w", simerr.ErrTimeout)
		default:
			return "", fmt.Errorf("decision call: %w: %v", simerr.ErrConnection, err)
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", simerr.NewAPIError(resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("decode response: %w", simerr.ErrInvalidJSON)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty completion: %w", simerr.ErrBadStructure)
	}
	return cr.Choices[0].Message.Content, nil
}

func isClientTimeout(err error) bool {
	var ue interface{ Timeout() bool }
	return errors.As(err, &ue) && ue.Timeout()
}

func (g *Gateway) observe(err error, elapsed time.Duration) {
	if g.observer == nil {
		return
	}
	g.observer.ObserveDecisionCall(simerr.Kind(err), elapsed)
}
