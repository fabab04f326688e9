package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/saint0x/gitfix/pkg/log"
	"github.com/sethvargo/go-envconfig"
)

// Supported completion providers
const (
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Environment holds validated environment configuration
type Environment struct {
	Port      string `env:"PORT,default=8080"`
	Debug     bool   `env:"DEBUG,default=false"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
	// CORSOrigin is the browser origin allowed on /api routes.
	CORSOrigin string `env:"CORS_ORIGIN,default=*"`

	SigningKey string        `env:"SIGNING_KEY"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,default=720h"`

	// RedisURL selects the Redis-backed ledger and PR-link stores. Empty
	// keeps thread state in process memory.
	RedisURL  string        `env:"REDIS_URL"`
	StateTTL  time.Duration `env:"STATE_TTL,default=168h"`
	KeyPrefix string        `env:"KEY_PREFIX,default=gitfix:"`

	GitHub GitHub `env:",prefix=GITHUB_"`
	LLM    LLM    `env:",prefix=LLM_"`
}

// GitHub configures the source control gateway.
type GitHub struct {
	AppID          int64    `env:"APP_ID"`
	PrivateKey     string   `env:"PRIVATE_KEY"`
	PrivateKeyFile string   `env:"PRIVATE_KEY_FILE"`
	Token          string   `env:"TOKEN"`
	APIURL         string   `env:"API_URL"`
	RateLimit      float64  `env:"RATE_LIMIT,default=10"`
	RateBurst      int      `env:"RATE_BURST,default=20"`
	PRLabels       []string `env:"PR_LABELS"`
	BranchPrefix   string   `env:"BRANCH_PREFIX,default=gitfix/"`
}

// LLM configures the structured completion provider.
type LLM struct {
	Provider    string        `env:"PROVIDER,default=google"`
	Model       string        `env:"MODEL"`
	APIKey      string        `env:"API_KEY"`
	BaseURL     string        `env:"BASE_URL"`
	Temperature float64       `env:"TEMPERATURE,default=0.2"`
	MaxTokens   int           `env:"MAX_TOKENS,default=8192"`
	MaxRetries  int           `env:"MAX_RETRIES,default=3"`
	Timeout     time.Duration `env:"TIMEOUT,default=90s"`
}

// DefaultModels per provider when LLM_MODEL is unset
var DefaultModels = map[string]string{
	ProviderGoogle:    "gemini-2.0-flash-001",
	ProviderAnthropic: "claude-sonnet-4-5",
	ProviderOpenAI:    "gpt-4.1",
}

// UsesApp reports whether GitHub App credentials are configured
func (g GitHub) UsesApp() bool {
	return g.AppID != 0 && (g.PrivateKey != "" || g.PrivateKeyFile != "")
}

// Key returns the PEM private key, reading PrivateKeyFile when needed.
func (g GitHub) Key() ([]byte, error) {
	if g.PrivateKey != "" {
		return []byte(g.PrivateKey), nil
	}
	data, err := os.ReadFile(g.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	return data, nil
}

// Load reads the environment without validating it
func Load(ctx context.Context) (*Environment, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Environment, error) {
	var env Environment
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if env.LLM.Model == "" {
		env.LLM.Model = DefaultModels[env.LLM.Provider]
	}
	return &env, nil
}

// Check validates a loaded environment
func (e *Environment) Check() error {
	var errs []error

	if e.SigningKey == "" {
		errs = append(errs, errors.New("SIGNING_KEY not configured"))
	}
	if !e.GitHub.UsesApp() && e.GitHub.Token == "" {
		errs = append(errs, errors.New("GITHUB_APP_ID with GITHUB_PRIVATE_KEY, or GITHUB_TOKEN, must be configured"))
	}
	if e.GitHub.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("GITHUB_RATE_LIMIT must be positive, got %v", e.GitHub.RateLimit))
	}

	switch e.LLM.Provider {
	case ProviderGoogle, ProviderAnthropic, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER %q", e.LLM.Provider))
	}
	if e.LLM.APIKey == "" {
		errs = append(errs, errors.New("LLM_API_KEY not configured"))
	}
	if e.LLM.MaxRetries < 0 {
		errs = append(errs, errors.New("LLM_MAX_RETRIES must not be negative"))
	}

	switch e.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported LOG_FORMAT %q", e.LogFormat))
	}

	return errors.Join(errs...)
}

// Validate loads and checks all environment variables
func Validate(ctx context.Context, logger *log.Logger) (*Environment, error) {
	return validate(ctx, logger, envconfig.OsLookuper())
}

func validate(ctx context.Context, logger *log.Logger, l envconfig.Lookuper) (*Environment, error) {
	env, err := load(ctx, l)
	if err != nil {
		return nil, err
	}
	if err := env.Check(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if logger.IsDebug() {
		logger.Debug("Port: %s", env.Port)
		logger.Debug("LLM provider: %s (%s)", env.LLM.Provider, env.LLM.Model)
		logger.Debug("GitHub auth: app=%v", env.GitHub.UsesApp())
		logger.Debug("Redis state: %v", env.RedisURL != "")
	}

	return env, nil
}
