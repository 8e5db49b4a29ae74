package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultHorizonURL  = "https://horizon.stellar.org"
	defaultDefindexURL = "https://api.defindex.io"
)

// ErrUpstreamRejected marks a non-success response from a market-data API,
// as opposed to a transport or decoding failure. Handlers map it to 400,
// everything else to 500.
var ErrUpstreamRejected = errors.New("market data upstream rejected the request")

// HorizonBalance is one entry of a Horizon account's balances array.
type HorizonBalance struct {
	Balance     string `json:"balance"`
	AssetType   string `json:"asset_type"`
	AssetCode   string `json:"asset_code,omitempty"`
	AssetIssuer string `json:"asset_issuer,omitempty"`
}

// MarketDataClient talks to the two third-party market-data APIs: the
// Horizon ledger indexer for account balances and DeFindex for vault APY.
// No caching and no retries; a failed call surfaces to the caller.
type MarketDataClient struct {
	HorizonURL  string
	DefindexURL string
	APIKey      string
	Client      *http.Client
}

// NewMarketDataClient reads endpoint overrides from the environment. The
// DeFindex API key is required; main fails fast before calling this if it
// is unset.
func NewMarketDataClient(apiKey string) *MarketDataClient {
	horizonURL := os.Getenv("HORIZON_URL")
	if horizonURL == "" {
		horizonURL = defaultHorizonURL
	}
	defindexURL := os.Getenv("DEFINDEX_URL")
	if defindexURL == "" {
		defindexURL = defaultDefindexURL
	}

	return &MarketDataClient{
		HorizonURL:  horizonURL,
		DefindexURL: defindexURL,
		APIKey:      apiKey,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FetchBalances returns the raw balances of a Horizon account.
func (m *MarketDataClient) FetchBalances(walletID string) ([]HorizonBalance, error) {
	url := fmt.Sprintf("%s/accounts/%s", m.HorizonURL, walletID)

	resp, err := m.Client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("horizon request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: horizon returned %d", ErrUpstreamRejected, resp.StatusCode)
	}

	var account struct {
		Balances []HorizonBalance `json:"balances"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("failed to decode horizon response: %w", err)
	}
	return account.Balances, nil
}

// FilterBalances keeps the balances matching the comma-separated asset list.
// The native balance is kept iff "XLM" appears in the list; issued assets
// match on asset code, case-insensitively. An empty filter keeps everything.
func FilterBalances(balances []HorizonBalance, assets string) []HorizonBalance {
	if assets == "" {
		return balances
	}

	wanted := make(map[string]bool)
	for _, a := range strings.Split(assets, ",") {
		if a = strings.ToUpper(strings.TrimSpace(a)); a != "" {
			wanted[a] = true
		}
	}

	filtered := make([]HorizonBalance, 0, len(balances))
	for _, b := range balances {
		if b.AssetType == "native" {
			if wanted["XLM"] {
				filtered = append(filtered, b)
			}
			continue
		}
		if wanted[strings.ToUpper(b.AssetCode)] {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

// GetVaultApy fetches the current APY of a vault from DeFindex.
func (m *MarketDataClient) GetVaultApy(vaultAddress string) (float64, error) {
	url := fmt.Sprintf("%s/vault/%s/apy", m.DefindexURL, vaultAddress)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)

	resp, err := m.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("defindex request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("%w: defindex returned %d", ErrUpstreamRejected, resp.StatusCode)
	}

	var out struct {
		APY float64 `json:"apy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode defindex response: %w", err)
	}
	return out.APY, nil
}
