package holders_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/defistate/defi-coin-fixtures-go/holders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEthplorer_TopHolders(t *testing.T) {
	var gotPath, gotKey, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("apiKey")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"holders":[
			{"address":"0x1111111111111111111111111111111111111111","balance":1000.5,"share":60},
			{"address":"0x2222222222222222222222222222222222222222","balance":500,"share":30}
		]}`))
	}))
	defer srv.Close()

	src := holders.NewEthplorer(holders.EthplorerConfig{BaseURL: srv.URL, RPS: 1000})
	got, err := src.TopHolders(context.Background(), dai, 0)
	require.NoError(t, err)

	assert.Equal(t, "/getTopTokenHolders/"+dai.Hex(), gotPath)
	assert.Equal(t, holders.DefaultEthplorerAPIKey, gotKey)
	assert.Equal(t, "50", gotLimit)
	assert.Equal(t, []holders.Holder{{Address: h1, Balance: 1000.5}, {Address: h2, Balance: 500}}, got)
}

func TestEthplorer_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusBadRequest, `{"error":{"code":150,"message":"Address is not a token contract"}}`},
		{"api error with 200", http.StatusOK, `{"error":{"code":104,"message":"Invalid API key"}}`},
		{"non json failure", http.StatusBadGateway, `<html>bad gateway</html>`},
		{"malformed address", http.StatusOK, `{"holders":[{"address":"0xnope","balance":1}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			src := holders.NewEthplorer(holders.EthplorerConfig{BaseURL: srv.URL, APIKey: "k", RPS: 1000})
			_, err := src.TopHolders(context.Background(), dai, 10)
			assert.Error(t, err)
		})
	}
}

func TestEthplorer_ContextCancelled(t *testing.T) {
	src := holders.NewEthplorer(holders.EthplorerConfig{BaseURL: "http://127.0.0.1:1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.TopHolders(ctx, dai, 10)
	assert.Error(t, err)
}
