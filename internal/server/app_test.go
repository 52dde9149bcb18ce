package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/exposureshield/internal/logging"
	"github.com/dmitrijs2005/exposureshield/internal/server/config"
	"github.com/dmitrijs2005/exposureshield/internal/server/repositories/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func testConfig(t *testing.T) *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrHTTP = freeAddr(t)
	c.SecretKey = "a"
	c.RefreshSecretKey = "b"
	return c
}

func TestNewApp_MemoryBackends(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t))
	require.NoError(t, err)

	assert.Nil(t, app.db)
	assert.IsType(t, &kv.MemoryStore{}, app.kv)
}

func TestNewApp_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := testConfig(t)
	c.RedisAddr = mr.Addr()

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	assert.IsType(t, &kv.RedisStore{}, app.kv)
	app.close(context.Background())
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	c := testConfig(t)
	c.RedisAddr = freeAddr(t)

	_, err := NewApp(context.Background(), c)
	assert.ErrorContains(t, err, "token store init error")
}

func TestApp_RunServesAndStops(t *testing.T) {
	c := testConfig(t)
	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + c.EndpointAddrHTTP + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

type syncingLogger struct {
	logging.Logger
	synced int
}

func (l *syncingLogger) Sync() error {
	l.synced++
	return nil
}

func TestApp_CloseSyncsLogger(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t))
	require.NoError(t, err)

	log := &syncingLogger{Logger: logging.Nop()}
	app.logger = log
	app.close(context.Background())

	assert.Equal(t, 1, log.synced)
}

func TestApp_RunWithZapBackend(t *testing.T) {
	c := testConfig(t)
	c.LogBackend = logging.BackendZap
	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	assert.IsType(t, &logging.ZapLogger{}, app.logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, app.Run(ctx))
}
