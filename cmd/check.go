package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/saint0x/gitfix/pkg/log"
)

func defaultURL() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return "http://localhost:" + port
}

func handleCheck(logger *log.Logger, args []string) error {
	flags := pflag.NewFlagSet("check", pflag.ContinueOnError)
	url := flags.String("url", defaultURL(), "Base URL of the gitfix server")
	timeout := flags.Duration("timeout", 5*time.Second, "Request timeout")
	if err := flags.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return checkHealth(ctx, logger, http.DefaultClient, *url)
}

// checkHealth reports whether the server at baseURL answers /health
func checkHealth(ctx context.Context, logger *log.Logger, client *http.Client, baseURL string) error {
	logger.Loading("🔍 Checking %s...", baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/health", nil)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("server is not running: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned non-OK status: %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to parse health response: %w", err)
	}
	if body.Status != "ok" {
		return fmt.Errorf("server reported status %q", body.Status)
	}

	logger.Success("✅ Server is healthy")
	return nil
}
