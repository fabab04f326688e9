package prlinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func registries(t *testing.T) map[string]Registry {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Registry{
		"memory": NewMemoryRegistry(),
		"redis":  NewRedisRegistry(client, "test:", time.Hour),
	}
}

func TestSetAndGetLink(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := reg.GetLink(ctx, "t1", "turn-1")
			require.NoError(t, err)
			require.False(t, ok, "expected no link before publish")

			require.NoError(t, reg.SetLink(ctx, "t1", "turn-1", "https://github.com/acme/widget/pull/7"))
			url, ok, err := reg.GetLink(ctx, "t1", "turn-1")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "https://github.com/acme/widget/pull/7", url)

			// republishing the same turn overwrites
			require.NoError(t, reg.SetLink(ctx, "t1", "turn-1", "https://github.com/acme/widget/pull/8"))
			url, _, _ = reg.GetLink(ctx, "t1", "turn-1")
			require.Equal(t, "https://github.com/acme/widget/pull/8", url)
		})
	}
}

func TestLinksAndClear(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, reg.SetLink(ctx, "t1", "a", "u1"))
			require.NoError(t, reg.SetLink(ctx, "t1", "b", "u2"))
			require.NoError(t, reg.SetLink(ctx, "t2", "a", "u3"))

			links, err := reg.Links(ctx, "t1")
			require.NoError(t, err)
			require.Equal(t, map[string]string{"a": "u1", "b": "u2"}, links)

			require.NoError(t, reg.ClearThread(ctx, "t1"))
			links, err = reg.Links(ctx, "t1")
			require.NoError(t, err)
			require.Empty(t, links)

			_, ok, err := reg.GetLink(ctx, "t2", "a")
			require.NoError(t, err)
			require.True(t, ok, "other threads keep their links")
		})
	}
}

func TestValidation(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.True(t, errors.Is(reg.SetLink(ctx, "", "a", "u"), ErrInvalidThread))
			require.True(t, errors.Is(reg.SetLink(ctx, "t", "", "u"), ErrInvalidTurn))
			_, _, err := reg.GetLink(ctx, "t", "")
			require.ErrorIs(t, err, ErrInvalidTurn)
			_, err = reg.Links(ctx, "")
			require.ErrorIs(t, err, ErrInvalidThread)
			require.ErrorIs(t, reg.ClearThread(ctx, ""), ErrInvalidThread)
		})
	}
}
