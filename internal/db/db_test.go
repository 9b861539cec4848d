package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/santa-scope/pkg/chat"
	"github.com/unklstewy/santa-scope/pkg/config"
	"github.com/unklstewy/santa-scope/pkg/route"
)

// testDB connects using the SANTA_DATABASE_* environment and skips the
// test when no server is reachable.
func testDB(t *testing.T) *DB {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := Connect(ctx, cfg.Database)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema(ctx))
	return db
}

func TestConnString(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db.example.com",
		Port:     5433,
		Username: "santa",
		Password: "cookies",
		Database: "northpole",
		SSLMode:  "require",
	}
	got := ConnString(cfg)
	for _, want := range []string{"host=db.example.com", "port=5433", "user=santa", "password=cookies", "dbname=northpole", "sslmode=require"} {
		assert.Contains(t, got, want)
	}
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, IsConnectionError(nil))
	assert.True(t, IsConnectionError(errors.New("dial tcp: Connection Refused")))
	assert.True(t, IsConnectionError(errors.New("unexpected EOF")))
	assert.False(t, IsConnectionError(errors.New(`relation "routes" does not exist`)))
}

func TestWithRetry(t *testing.T) {
	t.Run("Query errors are not retried", func(t *testing.T) {
		attempts := 0
		err := WithRetry(context.Background(), func() error {
			attempts++
			return errors.New("syntax error")
		}, 3)
		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("Connection errors are retried", func(t *testing.T) {
		attempts := 0
		err := WithRetry(context.Background(), func() error {
			attempts++
			if attempts < 2 {
				return errors.New("connection reset by peer")
			}
			return nil
		}, 3)
		assert.NoError(t, err)
		assert.Equal(t, 2, attempts)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, func() error {
			return errors.New("broken pipe")
		}, 3)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestReconnectGivesUp(t *testing.T) {
	cfg := config.DefaultConfig().Database
	cfg.Host = "127.0.0.1"
	cfg.Port = 1 // nothing listens here

	_, err := ReconnectWithRetry(context.Background(), cfg, 2, time.Millisecond, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "2 attempts"))
}

func TestHealthCheckNil(t *testing.T) {
	assert.Error(t, HealthCheck(context.Background(), nil))
}

func TestRouteRepository(t *testing.T) {
	db := testDB(t)
	repo := NewRouteRepository(db)
	ctx := context.Background()
	name := "test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = repo.DeleteRoute(ctx, name) })

	_, err := repo.GetRoute(ctx, name)
	assert.ErrorIs(t, err, ErrRouteNotFound)

	require.NoError(t, repo.ReplaceRoute(ctx, name, route.DefaultRoute()))
	got, err := repo.Source(name).LoadRoute(ctx)
	require.NoError(t, err)
	assert.Equal(t, route.DefaultRoute(), got)

	short := route.DefaultRoute()[:3]
	require.NoError(t, repo.ReplaceRoute(ctx, name, short))
	got, err = repo.GetRoute(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, short, got)

	routes, err := repo.ListRoutes(ctx)
	require.NoError(t, err)
	assert.Contains(t, routes, RouteSummary{Name: name, Waypoints: 3})

	assert.ErrorIs(t, repo.ReplaceRoute(ctx, name, nil), route.ErrEmptyRoute)

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Routes, 1)
}

func TestChatRepository(t *testing.T) {
	db := testDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()
	session := "test-" + time.Now().Format("150405.000000")
	store := repo.Store(session)
	t.Cleanup(func() { _ = repo.SaveMessages(ctx, session, nil) })

	msgs, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	now := time.Now().UTC().Truncate(time.Millisecond)
	want := []chat.Message{
		chat.Welcome(now),
		{ID: "1-2", Role: chat.RoleUser, Text: "Where are you?", Timestamp: now},
		{ID: "1-3", Role: chat.RoleSanta, Text: "Over Paris!", Timestamp: now},
	}
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Role, got[i].Role)
		assert.Equal(t, want[i].Text, got[i].Text)
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp))
	}
}
