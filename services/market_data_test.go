package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterBalances(t *testing.T) {
	balances := []HorizonBalance{
		{AssetType: "native", Balance: "100.5"},
		{AssetType: "credit_alphanum4", AssetCode: "USDC", Balance: "42.0"},
		{AssetType: "credit_alphanum4", AssetCode: "EURC", Balance: "7.0"},
	}

	// Filtering for an issued asset drops the native balance.
	got := FilterBalances(balances, "USDC")
	require.Len(t, got, 1)
	assert.Equal(t, "USDC", got[0].AssetCode)

	// XLM selects the native entry.
	got = FilterBalances(balances, "XLM,USDC")
	require.Len(t, got, 2)
	assert.Equal(t, "native", got[0].AssetType)
	assert.Equal(t, "USDC", got[1].AssetCode)

	// Matching is case-insensitive and whitespace-tolerant.
	got = FilterBalances(balances, " usdc , eurc ")
	assert.Len(t, got, 2)

	// Empty filter keeps everything.
	assert.Len(t, FilterBalances(balances, ""), 3)

	// Unknown assets match nothing.
	assert.Len(t, FilterBalances(balances, "DOGE"), 0)
}

func horizonStub(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newBalancesApp(t *testing.T, horizonURL string) *fiber.App {
	t.Helper()
	db := setupTestDB(t)
	market := &MarketDataClient{
		HorizonURL:  horizonURL,
		DefindexURL: "http://unused",
		APIKey:      "test-key",
		Client:      &http.Client{Timeout: time.Second},
	}
	svc := NewVaultService(db, market)

	app := fiber.New()
	app.Get("/api/v1/vault/balances/:walletId", svc.GetBalances)
	app.Get("/api/v1/vault/portfolio/:walletId", svc.GetPortfolio)
	return app
}

const horizonAccountBody = `{
	"id": "GWALLET",
	"balances": [
		{"balance": "250.75", "asset_type": "native"},
		{"balance": "10.00", "asset_type": "credit_alphanum4", "asset_code": "USDC", "asset_issuer": "GISSUER"}
	]
}`

func TestGetBalancesFiltersUpstreamResponse(t *testing.T) {
	server := horizonStub(t, http.StatusOK, horizonAccountBody)
	app := newBalancesApp(t, server.URL)

	status, resp := doJSON(t, app, "GET", "/api/v1/vault/balances/GWALLET?assets=USDC", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "GWALLET", resp["wallet"])

	balances := resp["balances"].([]interface{})
	require.Len(t, balances, 1)
	assert.Equal(t, "USDC", balances[0].(map[string]interface{})["asset_code"])

	status, resp = doJSON(t, app, "GET", "/api/v1/vault/balances/GWALLET?assets=XLM,USDC", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, resp["balances"], 2)
}

func TestGetBalancesMapsUpstreamRejectionTo400(t *testing.T) {
	server := horizonStub(t, http.StatusNotFound, `{"status": 404}`)
	app := newBalancesApp(t, server.URL)

	status, resp := doJSON(t, app, "GET", "/api/v1/vault/balances/GBAD", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid wallet ID or Horizon error.", resp["message"])
}

func TestGetBalancesMapsTransportFailureTo500(t *testing.T) {
	// Point the client at a server that is already gone.
	server := horizonStub(t, http.StatusOK, "{}")
	url := server.URL
	server.Close()
	app := newBalancesApp(t, url)

	status, _ := doJSON(t, app, "GET", "/api/v1/vault/balances/GWALLET", nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
}

func TestGetPortfolioBuildsPlaceholderView(t *testing.T) {
	server := horizonStub(t, http.StatusOK, horizonAccountBody)
	app := newBalancesApp(t, server.URL)

	status, resp := doJSON(t, app, "GET", "/api/v1/vault/portfolio/GWALLET", nil)
	require.Equal(t, fiber.StatusOK, status)

	rows := resp["portfolio"].([]interface{})
	require.Len(t, rows, 2)

	native := rows[0].(map[string]interface{})
	assert.Equal(t, "portfolio-1", native["id"])
	assert.Equal(t, "XLM", native["asset"])
	assert.EqualValues(t, 250.75, native["totalValue"])
	assert.Equal(t, "8.1", native["currentAPY"])
	assert.Equal(t, "1683.00", native["monthlyEarnings"])

	usdc := rows[1].(map[string]interface{})
	assert.Equal(t, "USDC", usdc["asset"])

	// Exact-code filter.
	status, resp = doJSON(t, app, "GET", "/api/v1/vault/portfolio/GWALLET?asset=USDC", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, resp["portfolio"], 1)
}

func TestGetVaultApySendsBearerKey(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte(`{"apy": 12.5}`))
	}))
	t.Cleanup(server.Close)

	market := &MarketDataClient{
		DefindexURL: server.URL,
		APIKey:      "sk_test",
		Client:      &http.Client{Timeout: time.Second},
	}

	apy, err := market.GetVaultApy("CVAULTADDR")
	require.NoError(t, err)
	assert.Equal(t, 12.5, apy)
	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, "/vault/CVAULTADDR/apy", gotPath)
}

func TestGetVaultApyUpstreamError(t *testing.T) {
	server := horizonStub(t, http.StatusForbidden, `{}`)
	market := &MarketDataClient{
		DefindexURL: server.URL,
		APIKey:      "sk_test",
		Client:      &http.Client{Timeout: time.Second},
	}

	_, err := market.GetVaultApy("CVAULTADDR")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamRejected)
}
