package api

import (
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusworks/harvester/internal/acquisition/engine"
	"github.com/corpusworks/harvester/internal/acquisition/policy"
	"github.com/corpusworks/harvester/pkg/pipeline"
)

func testApp(t *testing.T) *fiber.App {
	cfg := pipeline.DefaultConfig()
	cfg.Paths.InputRoot = filepath.Join(t.TempDir(), "in")
	cfg.Paths.OutputRoot = filepath.Join(t.TempDir(), "out")

	e := engine.New(cfg, policy.New(nil), nil, nil)

	app := fiber.New()
	SetupRoutes(app, NewHandlers(e, "1.2.3"))
	return app
}

func TestHealthEndpoint(t *testing.T) {
	app := testApp(t)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "harvester", body["service"])
	assert.Equal(t, "1.2.3", body["version"])
}

func TestMetricsEndpointReportsIdleRun(t *testing.T) {
	app := testApp(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "idle", body["phase"])
	assert.NotEmpty(t, body["run_id"])
	assert.EqualValues(t, 0, body["extracted"])
}
