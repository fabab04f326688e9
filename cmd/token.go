package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/saint0x/gitfix/pkg/auth"
	"github.com/saint0x/gitfix/pkg/config"
	"github.com/saint0x/gitfix/pkg/log"
)

// handleToken issues a session token without going through GitHub, for
// local testing against a running server
func handleToken(logger *log.Logger, args []string) error {
	flags := pflag.NewFlagSet("token", pflag.ContinueOnError)
	id := flags.Int64("id", 0, "GitHub user id")
	login := flags.String("login", "", "GitHub login")
	email := flags.String("email", "", "Email address")
	ttl := flags.Duration("ttl", 0, "Token lifetime (defaults to TOKEN_TTL)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *id == 0 || *login == "" {
		return errors.New("--id and --login are required")
	}

	env, err := config.Load(context.Background())
	if err != nil {
		return err
	}
	lifetime := env.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	issuer, err := auth.NewIssuer(env.SigningKey, auth.WithTTL(lifetime))
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}
	token, expires, err := issuer.Issue(auth.User{ID: *id, Login: *login, Email: *email})
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	logger.Success("✅ Token for %s expires %s", *login, expires.Format(time.RFC3339))
	fmt.Println(token)
	return nil
}
