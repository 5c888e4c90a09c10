package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/pkg/models"
	"github.com/opsrelay/opsrelay/pkg/runbook"
)

func ingestTestRunbook(t *testing.T, client *ent.Client, name, content string) {
	t.Helper()
	ingester := runbook.NewIngester(client, slog.New(slog.DiscardHandler))
	_, err := ingester.IngestDocument(context.Background(), name, content, "runbooks", "/docs/"+name, []string{"ops"})
	require.NoError(t, err)
}

func TestListRunbooksHandler(t *testing.T) {
	s, client := newTestServer(t)

	ingestTestRunbook(t, client.Client, "payments.md", "# Payments Runbook\n\nRestart the gateway.")
	ingestTestRunbook(t, client.Client, "auth.md", "# Auth Runbook\n\nRotate the signing keys.")

	t.Run("indexes distinct documents", func(t *testing.T) {
		var resp ListResponse[models.RunbookIndexItem]
		rec := getJSON(t, s, "/runbooks", &resp)
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, 2, resp.Total)
		require.Len(t, resp.Items, 2)
		assert.Equal(t, "RB-001", resp.Items[0].ID)
		assert.Equal(t, "auth.md", resp.Items[0].Source)
		assert.Equal(t, "Auth Runbook", resp.Items[0].Title)
	})

	t.Run("paginates", func(t *testing.T) {
		var resp ListResponse[models.RunbookIndexItem]
		rec := getJSON(t, s, "/runbooks?limit=1&offset=1", &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, resp.Total)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "payments.md", resp.Items[0].Source)
	})
}

func TestSearchRunbooksHandler(t *testing.T) {
	s, client := newTestServer(t)

	ingestTestRunbook(t, client.Client, "payments.md",
		"# Payments latency\n\nWhen payment latency spikes check the gateway connection pool.")
	ingestTestRunbook(t, client.Client, "dns.md",
		"# DNS failures\n\nFlush the resolver cache and verify upstream nameservers.")

	t.Run("ranks the matching document first", func(t *testing.T) {
		rec := getJSON(t, s, "/runbooks/search?q=payment+latency+gateway", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RunbookSearchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "payment latency gateway", resp.Query)
		require.NotEmpty(t, resp.Results)
		assert.Equal(t, "payments.md", resp.Results[0].SourceDocument)
		assert.Positive(t, resp.Results[0].Score)
	})

	t.Run("empty query is rejected", func(t *testing.T) {
		rec := getJSON(t, s, "/runbooks/search", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("out-of-range limit is rejected", func(t *testing.T) {
		rec := getJSON(t, s, "/runbooks/search?q=payments&limit=100", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
