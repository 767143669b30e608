package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"auftrag.chapter42.de/dispatch/internal/data"
	"auftrag.chapter42.de/dispatch/internal/dispatch"
	"auftrag.chapter42.de/dispatch/internal/persistence"
	"auftrag.chapter42.de/dispatch/internal/processor"
	"auftrag.chapter42.de/dispatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorsConfig(t *testing.T) {
	c := corsConfig(data.CorsConfig{AllowedOrigins: []string{"*"}})
	assert.True(t, c.AllowAllOrigins)
	assert.Empty(t, c.AllowOrigins)

	c = corsConfig(data.CorsConfig{AllowedOrigins: []string{"https://auftrag.de"}})
	assert.False(t, c.AllowAllOrigins)
	assert.Equal(t, []string{"https://auftrag.de"}, c.AllowOrigins)
}

func TestRouterServesHealthWithCors(t *testing.T) {
	cfg := &data.DispatchConfig{Debug: true, Cors: data.CorsConfig{AllowedOrigins: []string{"https://auftrag.de"}}}
	router := newRouter(cfg, dispatch.NewService(testutil.NewTestStore(t), nil, nil))

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://auftrag.de")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "https://auftrag.de", resp.Header().Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://fremd.example")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestDeliveriesSurviveRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), persistence.DefaultFileName)

	// Endpunkt ist nicht erreichbar und der Stopp kommt vor der Zustellung
	cfg := &data.WebhookConfig{
		Workers:     1,
		QueueSize:   10,
		MaxAttempts: 1,
		Timeout:     time.Second,
		Endpoints:   []data.EndpointConfig{{Name: "n8n", URL: "http://127.0.0.1:1/webhook"}},
	}
	d := processor.NewDispatcher(cfg, nil)
	require.Equal(t, 1, d.Publish(data.NewEvent(data.EventRequestCreated, "r-1", nil)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	shutdownDispatcher(ctx, d, path)

	_, err := os.Stat(path)
	require.NoError(t, err, "Datei mit offenen Zustellungen fehlt")

	restarted := processor.NewDispatcher(cfg, nil)
	restoreDeliveries(restarted, path)

	pending := restarted.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "r-1", pending[0].Event.RequestID)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "Datei wird nach dem Laden entfernt")
}

func TestRestoreKeepsMoreThanQueueSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), persistence.DefaultFileName)

	saved := make([]data.Delivery, 0, 5)
	for i := 0; i < 5; i++ {
		saved = append(saved, data.Delivery{
			ID:       fmt.Sprintf("d-%d", i),
			Endpoint: "n8n",
			Event:    data.NewEvent(data.EventRequestCreated, fmt.Sprintf("r-%d", i), nil),
		})
	}
	require.NoError(t, persistence.SavePendingDeliveries(path, saved))

	cfg := &data.WebhookConfig{
		Workers:     1,
		QueueSize:   2,
		MaxAttempts: 1,
		Endpoints:   []data.EndpointConfig{{Name: "n8n", URL: "http://127.0.0.1:1/webhook"}},
	}
	d := processor.NewDispatcher(cfg, nil)
	restoreDeliveries(d, path)
	assert.Len(t, d.Pending(), 5)

	// Ohne Zustellung erneut heruntergefahren: alle fünf landen wieder in der Datei
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	shutdownDispatcher(ctx, d, path)

	again, err := persistence.RestorePendingDeliveries(path)
	require.NoError(t, err)
	assert.Len(t, again, 5)
}
