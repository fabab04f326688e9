package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/saint0x/gitfix/pkg/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Options configures how installation clients authenticate
type Options struct {
	// AppID and PrivateKey select GitHub App authentication.
	AppID      int64
	PrivateKey []byte

	// Token is a static token used for every installation when no app
	// credentials are configured.
	Token string

	// BaseURL overrides the API endpoint (GitHub Enterprise, tests).
	BaseURL string

	RateLimit float64
	RateBurst int
	Labels    []string

	// Transport is the base round tripper, http.DefaultTransport if nil.
	Transport http.RoundTripper
}

// Clients hands out GitHub clients scoped to an installation
type Clients struct {
	logger  *log.Logger
	opts    Options
	base    http.RoundTripper
	apps    *ghinstallation.AppsTransport
	static  *Client
	clients sync.Map // int64 -> *Client
}

// rateLimitedTransport waits on a shared limiter before each request
type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return t.base.RoundTrip(req)
}

// NewClients creates a client factory
func NewClients(logger *log.Logger, opts Options) (*Clients, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		base = &rateLimitedTransport{
			base:    base,
			limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), burst),
		}
	}

	c := &Clients{logger: logger, opts: opts, base: base}

	switch {
	case opts.AppID != 0 && len(opts.PrivateKey) > 0:
		atr, err := ghinstallation.NewAppsTransport(base, opts.AppID, opts.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create app transport: %w", err)
		}
		if opts.BaseURL != "" {
			atr.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
		}
		c.apps = atr
		logger.Debug("GitHub App %d authentication configured", opts.AppID)
	case opts.Token != "":
		gh, err := c.newGitHub(oauth2.NewClient(
			context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: base}),
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
		))
		if err != nil {
			return nil, err
		}
		c.static = NewFromClient(logger, gh, opts.Labels)
		logger.Debug("GitHub static token authentication configured")
	default:
		return nil, errors.New("GitHub app credentials or token are required")
	}

	return c, nil
}

func (c *Clients) newGitHub(hc *http.Client) (*github.Client, error) {
	gh := github.NewClient(hc)
	if c.opts.BaseURL == "" {
		return gh, nil
	}

	u, err := url.Parse(strings.TrimSuffix(c.opts.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
	}
	gh.BaseURL = u
	gh.UploadURL = u
	return gh, nil
}

// ForInstallation returns the cached client for installationID, creating it
// on first use.
func (c *Clients) ForInstallation(_ context.Context, installationID int64) (*Client, error) {
	if installationID <= 0 {
		return nil, fmt.Errorf("invalid installation id %d", installationID)
	}
	if c.static != nil {
		return c.static, nil
	}

	if cached, ok := c.clients.Load(installationID); ok {
		return cached.(*Client), nil
	}

	itr := ghinstallation.NewFromAppsTransport(c.apps, installationID)
	gh, err := c.newGitHub(&http.Client{Transport: itr})
	if err != nil {
		return nil, err
	}

	client := NewFromClient(c.logger.With("installation", installationID), gh, c.opts.Labels)
	actual, _ := c.clients.LoadOrStore(installationID, client)
	return actual.(*Client), nil
}

// ForUserToken returns a client acting as the owner of a user access token.
// These clients are not cached.
func (c *Clients) ForUserToken(ctx context.Context, token string) (*Client, error) {
	if token == "" {
		return nil, errors.New("token is required")
	}
	hc := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: c.base}),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
	)
	gh, err := c.newGitHub(hc)
	if err != nil {
		return nil, err
	}
	return NewFromClient(c.logger, gh, nil), nil
}
