package battlemetrics_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/squadhub/squadlink/internal/battlemetrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const playerJSON = `{
	"id": "42",
	"attributes": {"name": "PlayerOne"},
	"relationships": {
		"identifiers": {
			"data": [
				{"type": "identifier", "attributes": {"type": "eosID", "identifier": "0002a1b2"}},
				{"type": "identifier", "attributes": {"type": "steamID", "identifier": "76561198000000001"}}
			]
		}
	}
}`

func newTestClient(t *testing.T, handler http.Handler) *battlemetrics.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return battlemetrics.NewClient(srv.URL, "test-token", time.Millisecond, zap.NewNop())
}

func TestSearchPlayerBySteamID(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "76561198000000001", r.URL.Query().Get("filter[search]"))

		fmt.Fprintf(w, `{"data": [%s]}`, playerJSON)
	}))

	player, err := client.SearchPlayerBySteamID(t.Context(), "76561198000000001")
	require.NoError(t, err)

	assert.Equal(t, "42", player.ID)
	assert.Equal(t, "PlayerOne", player.Name)
	assert.Equal(t, "76561198000000001", player.SteamID)
}

func TestSearchPlayerBySteamIDNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data": []}`)
	}))

	_, err := client.SearchPlayerBySteamID(t.Context(), "76561198000000009")
	assert.ErrorIs(t, err, battlemetrics.ErrPlayerNotFound)
}

func TestRetryOnRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		fmt.Fprintf(w, `{"data": [%s]}`, playerJSON)
	}))

	player, err := client.SearchPlayerBySteamID(t.Context(), "76561198000000001")
	require.NoError(t, err)
	assert.Equal(t, "42", player.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPlayersWithFlagPagination(t *testing.T) {
	t.Parallel()

	var srvURL string

	mux := http.NewServeMux()
	mux.HandleFunc("/players", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprintf(w, `{"data": [%s]}`, playerJSON)
			return
		}

		assert.Equal(t, "flag-1", r.URL.Query().Get("filter[playerFlags]"))
		fmt.Fprintf(w, `{"data": [%s], "links": {"next": %q}}`, playerJSON, srvURL+"/players?page=2")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	client := battlemetrics.NewClient(srv.URL, "test-token", time.Millisecond, zap.NewNop())

	players, err := client.PlayersWithFlag(t.Context(), "flag-1")
	require.NoError(t, err)
	assert.Len(t, players, 2)
}

func TestAddFlag(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/players/42/relationships/flags", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.WriteHeader(http.StatusCreated)
	}))

	require.NoError(t, client.AddFlag(t.Context(), "42", "flag-1"))
}

func TestRemoveFlagIdempotent(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))

	assert.NoError(t, client.RemoveFlag(t.Context(), "42", "flag-1"),
		"removing an absent flag must succeed")
}

func TestClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := client.SearchPlayerBySteamID(t.Context(), "76561198000000001")
	require.ErrorIs(t, err, battlemetrics.ErrRequestFailed)
	assert.Equal(t, int32(1), calls.Load())
}
