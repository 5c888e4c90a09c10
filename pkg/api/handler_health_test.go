package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t)

	var resp HealthResponse
	rec := getJSON(t, s, "/health", &resp)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.DBConnected)
	assert.NotEmpty(t, resp.Version)
	require.Contains(t, resp.Checks, "database")
	assert.Equal(t, "healthy", resp.Checks["database"].Status)
	// No worker pool is wired in the test server, so no worker_pool check.
	assert.NotContains(t, resp.Checks, "worker_pool")
}
