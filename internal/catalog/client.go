package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tinysprouts/tinysprouts-backend/pkg/config"
	pkgerrors "github.com/tinysprouts/tinysprouts-backend/pkg/errors"
	"github.com/tinysprouts/tinysprouts-backend/pkg/logger"
	"github.com/tinysprouts/tinysprouts-backend/pkg/types"
)

const maxResponseBytes = 4 << 20

// Client talks to the upstream catalog/order API. The backend proxies the
// catalog; it never stores or indexes it.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logger.Logger
}

// NewClient builds the upstream API client from config.
func NewClient(cfg config.CatalogConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, fmt.Errorf("catalog logger required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("catalog base url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid catalog base url: %w", err)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("catalog request timeout must be positive")
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		logger:  logg,
	}, nil
}

// ListProducts fetches the full product catalog.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.getJSON(ctx, "/products", &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct fetches a single product; unknown ids map to CodeNotFound.
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	var product Product
	if err := c.getJSON(ctx, "/products/"+url.PathEscape(id), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// ResolveUser looks up (or provisions) the upstream account for a verified
// phone number.
func (c *Client) ResolveUser(ctx context.Context, phone types.PhoneNumber) (*User, error) {
	payload := map[string]string{"phone": string(phone)}
	var user User
	if err := c.postJSON(ctx, "/auth/phone", payload, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListOrders fetches the order history for a user.
func (c *Client) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	id := strings.TrimSpace(userID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	var orders []Order
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(id)+"/orders", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Ping probes the upstream API for readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/products", nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "building catalog ping request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog unreachable")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode >= http.StatusInternalServerError {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("catalog ping returned %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "building catalog request")
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "encoding catalog request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(payload)))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "building catalog request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading catalog response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "catalog record not found")
	case resp.StatusCode >= http.StatusBadRequest:
		ctx := c.logger.WithFields(req.Context(), map[string]any{
			"status": resp.StatusCode,
			"path":   req.URL.Path,
		})
		c.logger.Warn(ctx, "catalog returned an error status")
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("catalog returned %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding catalog response")
	}
	return nil
}
