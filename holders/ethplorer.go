package holders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

const (
	DefaultEthplorerURL    = "https://api.ethplorer.io"
	DefaultEthplorerAPIKey = "freekey"

	// the free key allows roughly two requests per second
	defaultEthplorerRPS = 2
)

// EthplorerConfig configures the Ethplorer ranking source.
type EthplorerConfig struct {
	BaseURL    string
	APIKey     string
	RPS        float64
	HTTPClient *http.Client
}

// Ethplorer ranks holders with Ethplorer's getTopTokenHolders endpoint.
type Ethplorer struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type ethplorerResponse struct {
	Holders []struct {
		Address string  `json:"address"`
		Balance float64 `json:"balance"`
	} `json:"holders"`
	Error *ethplorerError `json:"error"`
}

type ethplorerError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ethplorerError) Error() string {
	return fmt.Sprintf("ethplorer error %d: %s", e.Code, e.Message)
}

// NewEthplorer builds an Ethplorer source, defaulting every unset field.
func NewEthplorer(cfg EthplorerConfig) *Ethplorer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultEthplorerURL
	}
	if cfg.APIKey == "" {
		cfg.APIKey = DefaultEthplorerAPIKey
	}
	if cfg.RPS <= 0 {
		cfg.RPS = defaultEthplorerRPS
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Ethplorer{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: cfg.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), 1),
	}
}

func (e *Ethplorer) TopHolders(ctx context.Context, token common.Address, limit int) ([]Holder, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("apiKey", e.apiKey)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := fmt.Sprintf("%s/getTopTokenHolders/%s?%s", e.baseURL, token.Hex(), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed ethplorerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return nil, parsed.Error
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	out := make([]Holder, 0, len(parsed.Holders))
	for _, h := range parsed.Holders {
		if !common.IsHexAddress(h.Address) {
			return nil, errors.New("ethplorer returned malformed holder address " + strconv.Quote(h.Address))
		}
		out = append(out, Holder{Address: common.HexToAddress(h.Address), Balance: h.Balance})
	}
	return out, nil
}
