package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	gogithub "github.com/google/go-github/v75/github"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/saint0x/gitfix/pkg/auth"
	"github.com/saint0x/gitfix/pkg/fix"
	"github.com/saint0x/gitfix/pkg/github"
	"github.com/saint0x/gitfix/pkg/ledger"
	"github.com/saint0x/gitfix/pkg/log"
	"github.com/saint0x/gitfix/pkg/prlinks"
	"github.com/saint0x/gitfix/pkg/publish"
)

// Installation is a GitHub client scoped to one app installation
type Installation interface {
	fix.BlobSource
	publish.Gateway
	ListRepos(ctx context.Context) ([]*gogithub.Repository, error)
	GetBranches(ctx context.Context, owner, repo string) ([]*gogithub.Branch, error)
	GetTree(ctx context.Context, owner, repo, branch string) (*gogithub.Tree, error)
}

// SourceControl resolves installations and user tokens
type SourceControl interface {
	ForInstallation(ctx context.Context, installationID int64) (Installation, error)
	VerifyUser(ctx context.Context, token string) (*github.User, error)
}

// Assistant answers one chat turn
type Assistant interface {
	Run(ctx context.Context, blobs fix.BlobSource, turn fix.Turn) (*fix.Outcome, error)
}

// Publisher opens a pull request from accepted file contents
type Publisher interface {
	Publish(ctx context.Context, gw publish.Gateway, req publish.CommitRequest) (*publish.Result, error)
}

// TokenIssuer issues and verifies API bearer tokens
type TokenIssuer interface {
	Issue(user auth.User) (string, time.Time, error)
	Verify(token string) (*auth.User, error)
}

// Dependencies are the collaborators the API is built on. Ledger writes must
// serialize with in-flight resolves, which *fix.Engine does.
type Dependencies struct {
	SourceControl SourceControl
	Assistant     Assistant
	Publisher     Publisher
	Ledger        ledger.Store
	Links         prlinks.Registry
	Tokens        TokenIssuer
}

func (d Dependencies) validate() error {
	var errs []error
	if d.SourceControl == nil {
		errs = append(errs, errors.New("source control is required"))
	}
	if d.Assistant == nil {
		errs = append(errs, errors.New("assistant is required"))
	}
	if d.Publisher == nil {
		errs = append(errs, errors.New("publisher is required"))
	}
	if d.Ledger == nil {
		errs = append(errs, errors.New("ledger is required"))
	}
	if d.Links == nil {
		errs = append(errs, errors.New("PR link registry is required"))
	}
	if d.Tokens == nil {
		errs = append(errs, errors.New("token issuer is required"))
	}
	return errors.Join(errs...)
}

// Server serves the gitfix HTTP API
type Server struct {
	logger  *log.Logger
	deps    Dependencies
	port    string
	origin  string
	publish singleflight.Group

	mu   sync.RWMutex
	srv  *http.Server
	addr net.Addr
}

// Option configures a Server
type Option func(*Server)

// WithCORSOrigin sets the origin allowed to call /api routes from a browser.
// Empty keeps the default "*".
func WithCORSOrigin(origin string) Option {
	return func(s *Server) {
		if origin != "" {
			s.origin = origin
		}
	}
}

// New creates a new server instance
func New(logger *log.Logger, port string, deps Dependencies, opts ...Option) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if port == "" {
		port = "8080"
	}

	if logger.IsDebug() {
		logger.Debug("Initializing server with components:")
		logger.Debug("- Source control: %T", deps.SourceControl)
		logger.Debug("- Assistant: %T", deps.Assistant)
		logger.Debug("- Ledger: %T", deps.Ledger)
		logger.Debug("- PR links: %T", deps.Links)
	}

	s := &Server{
		logger: logger,
		deps:   deps,
		port:   port,
		origin: "*",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the API's routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())
	s.handle(mux, "GET /health", false, s.handleHealth)
	s.handle(mux, "POST /verify-token", false, s.handleVerifyToken)

	s.handle(mux, "GET /api/repos/{installationId}", true, s.handleListRepos)
	s.handle(mux, "GET /api/repos/{owner}/{repo}/branches", true, s.handleListBranches)
	s.handle(mux, "POST /api/repos/{owner}/{repo}/tree", true, s.handleTree)

	s.handle(mux, "POST /api/suggest-fix", true, s.handleSuggestFix)
	s.handle(mux, "POST /api/apply-fix", true, s.handleApplyFix)

	s.handle(mux, "GET /api/threads/{threadId}/active-changes", true, s.handleGetActiveChanges)
	s.handle(mux, "PUT /api/threads/{threadId}/active-changes", true, s.handlePutActiveChanges)
	s.handle(mux, "GET /api/threads/{threadId}/pr-links", true, s.handleGetPRLinks)
	s.handle(mux, "DELETE /api/threads/{threadId}", true, s.handleDeleteThread)

	// preflight requests are answered by the cors middleware
	s.handle(mux, "OPTIONS /api/", true, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

// Start serves until ctx is cancelled, then shuts down
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	listener, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on port %s: %w", s.port, err)
	}
	s.addr = listener.Addr()
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Success("Server is running on %s", listener.Addr())

	select {
	case <-ctx.Done():
		return s.Stop()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		s.logger.Error("Server error: %v", err)
		return fmt.Errorf("server error: %w", err)
	}
}

// Addr is the bound listener address once Start has run
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Stop stops the server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to stop server: %v", err)
			return fmt.Errorf("failed to stop server: %w", err)
		}
		s.srv = nil
		s.logger.Success("Server stopped")
	}

	return nil
}

// clientsSource adapts the installation client factory to SourceControl
type clientsSource struct {
	clients *github.Clients
}

// NewSourceControl exposes a client factory as SourceControl
func NewSourceControl(clients *github.Clients) SourceControl {
	return clientsSource{clients: clients}
}

func (c clientsSource) ForInstallation(ctx context.Context, installationID int64) (Installation, error) {
	client, err := c.clients.ForInstallation(ctx, installationID)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c clientsSource) VerifyUser(ctx context.Context, token string) (*github.User, error) {
	client, err := c.clients.ForUserToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return client.CurrentUser(ctx)
}
