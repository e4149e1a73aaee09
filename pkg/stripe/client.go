package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/tamwill-backend/pkg/config"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultTimeout = 10 * time.Second
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client owns the Stripe API client used to open and read payment intents
// and the secret used to verify webhook deliveries.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
}

// NewClient validates the key against the configured environment and builds
// a client with bounded timeouts and retries. No package-level stripe.Key is
// set, so several clients can coexist in tests.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, apiKey, secret, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxNetworkRetries
	if retries < 0 {
		retries = 0
	}
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(retries),
	})

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env":         env,
			"stripe_max_retries": retries,
			"stripe_timeout_ms":  timeout.Milliseconds(),
		}), "stripe client initialized")
	}

	return &Client{
		api:           stripe.NewClient(apiKey, stripe.WithBackends(backends)),
		environment:   env,
		signingSecret: secret,
	}, nil
}

func credentials(cfg config.StripeConfig) (env, apiKey, secret string, err error) {
	env = strings.TrimSpace(strings.ToLower(cfg.Env))
	if env == "" {
		env = testEnv
	}
	if env != testEnv && env != liveEnv {
		return "", "", "", errInvalidStripeEnv
	}

	apiKey = strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return "", "", "", errAPIKeyRequired
	}
	secret = strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return "", "", "", errSecretRequired
	}

	// Secret (sk_) and restricted (rk_) keys both encode their mode.
	if !strings.HasPrefix(apiKey, "sk_"+env) && !strings.HasPrefix(apiKey, "rk_"+env) {
		return "", "", "", fmt.Errorf("stripe environment %q requires a %s secret key (sk_%s/rk_%s)", env, env, env, env)
	}
	return env, apiKey, secret, nil
}

func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports "test" or "live".
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// VerifyEvent checks the Stripe-Signature header and decodes the event.
func (c *Client) VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	if c == nil {
		return stripe.Event{}, errSecretRequired
	}
	return VerifyEvent(payload, signatureHeader, c.signingSecret)
}

// VerifyEvent is the secret-explicit form used by tests and tooling. Events
// pinned to another API version are accepted; only the payment_intent object
// shape is read downstream.
func VerifyEvent(payload []byte, signatureHeader, secret string) (stripe.Event, error) {
	if strings.TrimSpace(secret) == "" {
		return stripe.Event{}, errSecretRequired
	}
	return webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
