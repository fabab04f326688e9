// Package app wires configuration into a running gitfix server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/saint0x/gitfix/pkg/ai"
	"github.com/saint0x/gitfix/pkg/auth"
	"github.com/saint0x/gitfix/pkg/config"
	"github.com/saint0x/gitfix/pkg/fix"
	"github.com/saint0x/gitfix/pkg/github"
	"github.com/saint0x/gitfix/pkg/ledger"
	"github.com/saint0x/gitfix/pkg/log"
	"github.com/saint0x/gitfix/pkg/prlinks"
	"github.com/saint0x/gitfix/pkg/publish"
	"github.com/saint0x/gitfix/pkg/server"
)

// App owns the server and the resources behind it
type App struct {
	logger *log.Logger
	server *server.Server
	redis  *redis.Client
}

// New builds every component from a validated environment
func New(ctx context.Context, logger *log.Logger, env *config.Environment) (*App, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if env == nil {
		return nil, errors.New("environment is required")
	}
	a := &App{logger: logger}

	store, links, err := a.stateStores(ctx, env)
	if err != nil {
		return nil, err
	}

	clients, err := newClients(logger, env.GitHub)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Success("GitHub client ready (app auth: %v)", env.GitHub.UsesApp())

	completer, err := ai.NewCompleter(ctx, env.LLM.Provider, ai.CompleterOptions{
		APIKey:      env.LLM.APIKey,
		Model:       env.LLM.Model,
		BaseURL:     env.LLM.BaseURL,
		Temperature: env.LLM.Temperature,
		MaxTokens:   env.LLM.MaxTokens,
		HTTPClient:  &http.Client{Timeout: env.LLM.Timeout},
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create completer: %w", err)
	}
	retry := ai.DefaultRetryConfig()
	retry.MaxRetries = env.LLM.MaxRetries
	gen, err := ai.New(logger, completer, ai.WithRetryConfig(retry))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	logger.Success("AI generator ready (%s/%s)", completer.Provider(), completer.Model())

	engine, err := fix.NewEngine(logger, gen, store)
	if err != nil {
		a.Close()
		return nil, err
	}
	dispatcher, err := fix.NewDispatcher(logger, gen, engine)
	if err != nil {
		a.Close()
		return nil, err
	}
	pipeline, err := publish.New(logger, gen, publish.WithBranchPrefix(env.GitHub.BranchPrefix))
	if err != nil {
		a.Close()
		return nil, err
	}
	tokens, err := auth.NewIssuer(env.SigningKey, auth.WithTTL(env.TokenTTL))
	if err != nil {
		a.Close()
		return nil, err
	}

	srv, err := server.New(logger, env.Port, server.Dependencies{
		SourceControl: server.NewSourceControl(clients),
		Assistant:     dispatcher,
		Publisher:     pipeline,
		Ledger:        engine,
		Links:         links,
		Tokens:        tokens,
	}, server.WithCORSOrigin(env.CORSOrigin))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	a.server = srv
	logger.Success("Server initialized")

	return a, nil
}

// stateStores picks Redis when REDIS_URL is set and process memory otherwise
func (a *App) stateStores(ctx context.Context, env *config.Environment) (ledger.Store, prlinks.Registry, error) {
	if env.RedisURL == "" {
		a.logger.Warning("REDIS_URL not set, thread state is kept in memory")
		return ledger.NewMemoryStore(), prlinks.NewMemoryRegistry(), nil
	}

	opts, err := redis.ParseURL(env.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Success("Redis state ready at %s", opts.Addr)

	return ledger.NewRedisStore(client, env.KeyPrefix, env.StateTTL),
		prlinks.NewRedisRegistry(client, env.KeyPrefix, env.StateTTL),
		nil
}

func newClients(logger *log.Logger, cfg config.GitHub) (*github.Clients, error) {
	opts := github.Options{
		Token:     cfg.Token,
		BaseURL:   cfg.APIURL,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Labels:    cfg.PRLabels,
	}
	if cfg.UsesApp() {
		key, err := cfg.Key()
		if err != nil {
			return nil, err
		}
		opts.AppID = cfg.AppID
		opts.PrivateKey = key
	}
	clients, err := github.NewClients(logger, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub clients: %w", err)
	}
	return clients, nil
}

// Handler exposes the HTTP routes
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run serves until ctx is cancelled and then releases resources
func (a *App) Run(ctx context.Context) error {
	defer a.Close()
	return a.server.Start(ctx)
}

// Close releases the Redis connection, if any
func (a *App) Close() error {
	if a.redis == nil {
		return nil
	}
	err := a.redis.Close()
	a.redis = nil
	return err
}
