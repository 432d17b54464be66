package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"sunmatch/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, payload any) *http.Response {
	blob, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(blob))),
		Header:     make(http.Header),
	}
}

func TestGetProductsAllScrollWithRetry(t *testing.T) {
	attempt := 0

	cfg, _ := config.Load()
	cfg.CatalogAPIToken = "test"
	cfg.CatalogAPIBaseURL = "https://example.test/api/v1"
	cfg.CatalogRateRPS = 1000

	client := NewClient(cfg)
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/api/v1/products/scroll" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test" {
				t.Fatalf("unexpected auth header %q", got)
			}
			attempt++
			switch attempt {
			case 1:
				return &http.Response{
					StatusCode: http.StatusInternalServerError,
					Body:       io.NopCloser(strings.NewReader(`{"error":"boom"}`)),
					Header:     make(http.Header),
				}, nil
			case 2:
				return jsonResponse(http.StatusOK, map[string]any{
					"success": true,
					"data": map[string]any{
						"products": []map[string]any{
							{"id": "p1", "brand": "Eging", "model": "EG-440NT54-HL/BF-DG", "type": "panel", "spec": 440.0},
							{"id": "", "brand": "broken", "model": "x", "type": "panel"},
						},
						"scrollId": "abc",
					},
				}), nil
			default:
				return jsonResponse(http.StatusOK, map[string]any{
					"success": true,
					"data": map[string]any{
						"products": []map[string]any{
							{"id": "i1", "brand": "GoodWe", "model": "GW6000-EH", "type": "inverter", "spec": 6.0},
						},
						"scrollId": nil,
					},
				}), nil
			}
		}),
	}

	products, skipped, err := client.GetProductsAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if skipped != 1 {
		t.Fatalf("expected 1 skipped, got %d", skipped)
	}
	if products[0].Brand != "EGING" || products[1].Brand != "GOODWE" {
		t.Fatalf("brands not normalized: %+v", products)
	}
	if attempt != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempt)
	}
}

func TestGetProductsSincePassesLookback(t *testing.T) {
	cfg, _ := config.Load()
	cfg.CatalogAPIToken = "test"
	cfg.CatalogAPIBaseURL = "https://example.test/api/v1"
	cfg.CatalogRateRPS = 1000

	client := NewClient(cfg)
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if got := r.URL.Query().Get("hours"); got != "24" {
				t.Fatalf("hours param = %q", got)
			}
			return jsonResponse(http.StatusOK, map[string]any{
				"success": true,
				"data":    map[string]any{"products": []map[string]any{}, "scrollId": nil},
			}), nil
		}),
	}

	if _, _, err := client.GetProductsSince(context.Background(), 24); err != nil {
		t.Fatal(err)
	}
}

func TestClientMissingToken(t *testing.T) {
	cfg, _ := config.Load()
	cfg.CatalogAPIToken = ""
	cfg.CatalogAPIBaseURL = "https://example.test/api/v1"

	client := NewClient(cfg)
	if _, _, err := client.GetProductsAll(context.Background()); err == nil {
		t.Fatal("expected error on missing token")
	}
}
