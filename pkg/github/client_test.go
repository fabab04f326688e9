package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/saint0x/gitfix/pkg/log"
)

// fakeGitHub records requests and answers with canned JSON
type fakeGitHub struct {
	mu     sync.Mutex
	calls  []string
	bodies map[string]map[string]any
	raw    map[string]string
}

func (f *fakeGitHub) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := r.Method + " " + r.URL.Path
	f.calls = append(f.calls, key)
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			if f.raw == nil {
				f.raw = map[string]string{}
			}
			f.raw[key] = strings.TrimSpace(string(data))
		}
		var body map[string]any
		if json.Unmarshal(data, &body) == nil {
			if f.bodies == nil {
				f.bodies = map[string]map[string]any{}
			}
			f.bodies[key] = body
		}
	}
}

func setupTestClient(t *testing.T, labels []string) (*Client, *fakeGitHub) {
	t.Helper()
	fake := &fakeGitHub{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /repos/acme/widget/git/blobs/{sha}", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		if r.PathValue("sha") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
			return
		}
		if r.Header.Get("Accept") != "application/vnd.github.v3.raw" {
			t.Errorf("Expected raw accept header, got %q", r.Header.Get("Accept"))
		}
		fmt.Fprint(w, "package main\n")
	})
	mux.HandleFunc("GET /repos/acme/widget/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		fmt.Fprint(w, `{"ref":"refs/heads/main","object":{"type":"commit","sha":"c0"}}`)
	})
	mux.HandleFunc("GET /repos/acme/widget/git/commits/c0", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		fmt.Fprint(w, `{"sha":"c0","tree":{"sha":"t0"}}`)
	})
	mux.HandleFunc("POST /repos/acme/widget/git/blobs", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"sha":"b1"}`)
	})
	mux.HandleFunc("POST /repos/acme/widget/git/trees", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"sha":"t1"}`)
	})
	mux.HandleFunc("POST /repos/acme/widget/git/commits", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"sha":"c1"}`)
	})
	mux.HandleFunc("POST /repos/acme/widget/git/refs", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"ref":"refs/heads/gitfix/1","object":{"sha":"c1"}}`)
	})
	mux.HandleFunc("POST /repos/acme/widget/pulls", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number":7,"html_url":"https://github.com/acme/widget/pull/7"}`)
	})
	mux.HandleFunc("POST /repos/acme/widget/issues/7/labels", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("GET /repos/acme/widget/branches", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"name":"dev","commit":{"sha":"d0"}}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/widget/branches?page=2>; rel="next"`, "http://"+r.Host))
		fmt.Fprint(w, `[{"name":"main","commit":{"sha":"c0"},"protected":true}]`)
	})
	mux.HandleFunc("GET /repos/acme/widget/branches/main", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		fmt.Fprint(w, `{"name":"main","commit":{"sha":"c0"}}`)
	})
	mux.HandleFunc("GET /repos/acme/widget/git/trees/c0", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		if r.URL.Query().Get("recursive") == "" {
			t.Error("Expected recursive tree request")
		}
		fmt.Fprint(w, `{"sha":"t0","tree":[{"path":"a.ts","type":"blob","sha":"sha1"}],"truncated":false}`)
	})
	mux.HandleFunc("GET /installation/repositories", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		fmt.Fprint(w, `{"total_count":1,"repositories":[{"name":"widget","full_name":"acme/widget"}]}`)
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		if r.Header.Get("Authorization") != "Bearer user-token" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Bad credentials"}`)
			return
		}
		fmt.Fprint(w, `{"id":1,"login":"octocat","email":"octo@example.com"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	clients, err := NewClients(log.New(false), Options{
		Token:   "test-token",
		BaseURL: srv.URL,
		Labels:  labels,
	})
	if err != nil {
		t.Fatalf("NewClients() error = %v", err)
	}
	client, err := clients.ForInstallation(context.Background(), 1)
	if err != nil {
		t.Fatalf("ForInstallation() error = %v", err)
	}
	return client, fake
}

func TestGetBlobContent(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := context.Background()

	got, err := client.GetBlobContent(ctx, "acme", "widget", "sha1")
	if err != nil {
		t.Fatalf("GetBlobContent() error = %v", err)
	}
	if got != "package main\n" {
		t.Errorf("GetBlobContent() = %q", got)
	}

	_, err = client.GetBlobContent(ctx, "acme", "widget", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBlobContent() error = %v, want ErrNotFound", err)
	}
}

func TestPublishPrimitives(t *testing.T) {
	client, fake := setupTestClient(t, []string{"gitfix"})
	ctx := context.Background()

	head, err := client.GetBranchHeadSHA(ctx, "acme", "widget", "main")
	if err != nil || head != "c0" {
		t.Fatalf("GetBranchHeadSHA() = %q, %v", head, err)
	}
	tree, err := client.GetCommitTreeSHA(ctx, "acme", "widget", head)
	if err != nil || tree != "t0" {
		t.Fatalf("GetCommitTreeSHA() = %q, %v", tree, err)
	}
	blob, err := client.CreateBlob(ctx, "acme", "widget", "new")
	if err != nil || blob != "b1" {
		t.Fatalf("CreateBlob() = %q, %v", blob, err)
	}
	newTree, err := client.CreateTree(ctx, "acme", "widget", tree, []TreeFile{{Path: "x.ts", BlobSHA: blob}})
	if err != nil || newTree != "t1" {
		t.Fatalf("CreateTree() = %q, %v", newTree, err)
	}
	commit, err := client.CreateCommit(ctx, "acme", "widget", "feat: x", newTree, head)
	if err != nil || commit != "c1" {
		t.Fatalf("CreateCommit() = %q, %v", commit, err)
	}
	if err := client.CreateBranch(ctx, "acme", "widget", "gitfix/1", commit); err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	pr, err := client.CreatePullRequest(ctx, "acme", "widget", "feat: x", "body", "gitfix/1", "main")
	if err != nil {
		t.Fatalf("CreatePullRequest() error = %v", err)
	}
	if pr.URL != "https://github.com/acme/widget/pull/7" || pr.Number != 7 {
		t.Errorf("CreatePullRequest() = %+v", pr)
	}

	blobBody := fake.bodies["POST /repos/acme/widget/git/blobs"]
	if blobBody["content"] != "new" || blobBody["encoding"] != "utf-8" {
		t.Errorf("Unexpected blob body %v", blobBody)
	}
	treeBody := fake.bodies["POST /repos/acme/widget/git/trees"]
	if treeBody["base_tree"] != "t0" {
		t.Errorf("Expected base_tree t0, got %v", treeBody["base_tree"])
	}
	commitBody := fake.bodies["POST /repos/acme/widget/git/commits"]
	parents, _ := commitBody["parents"].([]any)
	if len(parents) != 1 || parents[0] != "c0" {
		t.Errorf("Expected single parent c0, got %v", commitBody["parents"])
	}
	refBody := fake.bodies["POST /repos/acme/widget/git/refs"]
	if refBody["ref"] != "refs/heads/gitfix/1" {
		t.Errorf("Expected refs/heads/gitfix/1, got %v", refBody["ref"])
	}
	if got := fake.raw["POST /repos/acme/widget/issues/7/labels"]; got != `["gitfix"]` {
		t.Errorf("Expected labels [\"gitfix\"] to be applied, got %q", got)
	}
}

func TestListing(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := context.Background()

	branches, err := client.GetBranches(ctx, "acme", "widget")
	if err != nil {
		t.Fatalf("GetBranches() error = %v", err)
	}
	if len(branches) != 2 || branches[1].GetName() != "dev" {
		t.Errorf("Expected two pages of branches, got %d", len(branches))
	}

	tree, err := client.GetTree(ctx, "acme", "widget", "main")
	if err != nil {
		t.Fatalf("GetTree() error = %v", err)
	}
	if len(tree.Entries) != 1 || tree.Entries[0].GetPath() != "a.ts" {
		t.Errorf("Unexpected tree %+v", tree)
	}

	repos, err := client.ListRepos(ctx)
	if err != nil {
		t.Fatalf("ListRepos() error = %v", err)
	}
	if len(repos) != 1 || repos[0].GetFullName() != "acme/widget" {
		t.Errorf("Unexpected repos %v", repos)
	}
}

func TestForUserToken(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	clients := &Clients{logger: log.New(false), opts: Options{BaseURL: client.client.BaseURL.String()}, base: http.DefaultTransport}

	userClient, err := clients.ForUserToken(context.Background(), "user-token")
	if err != nil {
		t.Fatalf("ForUserToken() error = %v", err)
	}
	u, err := userClient.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if u.Login != "octocat" {
		t.Errorf("Expected octocat, got %s", u.Login)
	}

	bad, _ := clients.ForUserToken(context.Background(), "wrong")
	if _, err := bad.CurrentUser(context.Background()); err == nil {
		t.Error("Expected error for bad token")
	}
}

func TestNewClients(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantError bool
	}{
		{
			name: "Static token",
			opts: Options{Token: "t"},
		},
		{
			name:      "No credentials",
			opts:      Options{},
			wantError: true,
		},
		{
			name:      "Invalid app key",
			opts:      Options{AppID: 1, PrivateKey: []byte("not a pem")},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClients(log.New(false), tt.opts)
			if tt.wantError && err == nil {
				t.Error("NewClients() error = nil, want error")
			}
			if !tt.wantError && err != nil {
				t.Errorf("NewClients() error = %v", err)
			}
		})
	}

	if _, err := NewClients(nil, Options{Token: "t"}); err == nil {
		t.Error("Expected error for nil logger")
	}
}

func TestForInstallationValidation(t *testing.T) {
	clients, err := NewClients(log.New(false), Options{Token: "t"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := clients.ForInstallation(context.Background(), 0); err == nil {
		t.Error("Expected error for installation id 0")
	}
	a, _ := clients.ForInstallation(context.Background(), 5)
	b, _ := clients.ForInstallation(context.Background(), 6)
	if a != b {
		t.Error("Expected static token clients to be shared")
	}
}

func TestRateLimitedTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	clients, err := NewClients(log.New(false), Options{Token: "t", BaseURL: srv.URL, RateLimit: 1, RateBurst: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := clients.base.(*rateLimitedTransport); !ok {
		t.Fatalf("Expected rate limited transport, got %T", clients.base)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if _, err := clients.base.RoundTrip(req.Clone(context.Background())); err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	if _, err := clients.base.RoundTrip(req); err == nil {
		t.Error("Expected cancelled context to fail the limiter wait")
	}
}
