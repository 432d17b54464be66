package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sunmatch/internal"
	"sunmatch/internal/config"
	"sunmatch/internal/util"
)

// Client fetches catalog products from the remote catalog API: bearer auth,
// scroll pagination, retry with backoff on retryable statuses, client-side
// rate limiting.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type scrollPayload struct {
	Products []map[string]any `json:"products"`
	ScrollID *string          `json:"scrollId"`
	Total    *int             `json:"total"`
}

func NewClient(cfg config.Config) *Client {
	rps := cfg.CatalogRateRPS
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.CatalogTimeoutMs) * time.Millisecond},
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// GetProductsAll scrolls the entire product listing. Malformed entries are
// skipped; the count of skips is returned alongside the products.
func (c *Client) GetProductsAll(ctx context.Context) ([]internal.Product, int, error) {
	return c.getProductsScroll(ctx, map[string]string{})
}

// GetProductsSince fetches entries updated in the given lookback window.
func (c *Client) GetProductsSince(ctx context.Context, hours int) ([]internal.Product, int, error) {
	return c.getProductsScroll(ctx, map[string]string{"hours": fmt.Sprintf("%d", hours)})
}

func (c *Client) getProductsScroll(ctx context.Context, params map[string]string) ([]internal.Product, int, error) {
	all := make([]internal.Product, 0)
	skipped := 0
	seen := map[string]struct{}{}
	var scrollID string

	for {
		query := map[string]string{}
		for k, v := range params {
			query[k] = v
		}
		if scrollID != "" {
			query["scrollId"] = scrollID
		}

		body, err := c.fetchJSON(ctx, "products/scroll", query)
		if err != nil {
			return nil, skipped, err
		}

		var payload scrollPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, skipped, err
		}

		for _, raw := range payload.Products {
			product, err := toProduct(raw)
			if err != nil {
				skipped++
				continue
			}
			all = append(all, product)
		}

		if payload.ScrollID == nil || *payload.ScrollID == "" || len(payload.Products) == 0 {
			break
		}
		if _, ok := seen[*payload.ScrollID]; ok {
			break
		}
		seen[*payload.ScrollID] = struct{}{}
		scrollID = *payload.ScrollID
	}

	return all, skipped, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.CatalogAPIToken) == "" {
		return nil, errors.New("missing CATALOG_API_TOKEN")
	}

	baseURL := strings.TrimRight(c.cfg.CatalogAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.CatalogAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("catalog status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("catalog api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("catalog api unsuccessful: %s", string(apiResp.Errors))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("catalog request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// toProduct validates one raw catalog tuple. Spec is optional; everything
// else is required.
func toProduct(raw map[string]any) (internal.Product, error) {
	id, _ := raw["id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		return internal.Product{}, errors.New("missing id")
	}

	brand := util.NormalizeBrand(stringField(raw, "brand"))
	model := util.NormalizeModel(stringField(raw, "model"))
	if brand == "" || model == "" {
		return internal.Product{}, errors.New("empty brand or model")
	}

	ptype := internal.ProductType(strings.ToLower(stringField(raw, "type")))
	if !ptype.Valid() {
		return internal.Product{}, fmt.Errorf("unknown type %q", raw["type"])
	}

	product := internal.Product{ID: id, Brand: brand, Model: model, Type: ptype}
	switch v := raw["spec"].(type) {
	case float64:
		product.Spec = internal.FloatPtr(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			product.Spec = internal.FloatPtr(f)
		}
	}

	return product, nil
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return strings.TrimSpace(s)
}
