package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/resell/backend/internal/domain/marketplace"
)

// EbayAdapter implements the marketplace Adapter interface for eBay using
// the Sell Inventory and Fulfillment APIs
type EbayAdapter struct {
	config     *EbayConfig
	httpClient *http.Client

	tenantConfigs map[uuid.UUID]*EbayConfig
	mu            stdsync.RWMutex
}

// NewEbayAdapter creates a new eBay adapter with the given default
// configuration. Pass nil to require per-tenant credentials.
func NewEbayAdapter(config *EbayConfig) (*EbayAdapter, error) {
	timeout := 30 * time.Second
	if config != nil {
		if err := config.Validate(); err != nil {
			return nil, err
		}
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	return &EbayAdapter{
		config:        config,
		httpClient:    &http.Client{Timeout: timeout},
		tenantConfigs: make(map[uuid.UUID]*EbayConfig),
	}, nil
}

// SetTenantConfig sets the OAuth credentials for a specific tenant
func (a *EbayAdapter) SetTenantConfig(tenantID uuid.UUID, config *EbayConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tenantConfigs[tenantID] = config
	return nil
}

func (a *EbayAdapter) getTenantConfig(tenantID uuid.UUID) (*EbayConfig, error) {
	a.mu.RLock()
	config, ok := a.tenantConfigs[tenantID]
	a.mu.RUnlock()
	if ok {
		return config, nil
	}
	if a.config != nil {
		return a.config, nil
	}
	return nil, marketplace.ErrCredentialsNotFound
}

// Code returns the marketplace this adapter serves
func (a *EbayAdapter) Code() marketplace.Code {
	return marketplace.CodeEbay
}

// Execute performs one call against the eBay API.
func (a *EbayAdapter) Execute(ctx context.Context, req marketplace.Request) (*marketplace.Response, error) {
	config, err := a.getTenantConfig(req.TenantID)
	if err != nil {
		return nil, err
	}

	method, path, err := ebayEndpoint(req)
	if err != nil {
		return nil, err
	}

	body, statusCode, err := a.doRequest(ctx, config, method, path, req.Payload)
	if err != nil {
		return nil, err
	}

	return &marketplace.Response{
		StatusCode: statusCode,
		Body:       body,
		ExternalID: ebayExternalID(body),
	}, nil
}

// ebayEndpoint maps an action to the eBay Sell API route. Listings are
// addressed by SKU; the product id serves as the SKU.
func ebayEndpoint(req marketplace.Request) (method, path string, err error) {
	switch req.Action {
	case "publish", "update":
		if req.ProductID == nil {
			return "", "", fmt.Errorf("%w: %s requires a product", marketplace.ErrAdapterRejected, req.Action)
		}
		return http.MethodPut, "/sell/inventory/v1/inventory_item/" + req.ProductID.String(), nil
	case "delete":
		if req.ProductID == nil {
			return "", "", fmt.Errorf("%w: delete requires a product", marketplace.ErrAdapterRejected)
		}
		return http.MethodDelete, "/sell/inventory/v1/inventory_item/" + req.ProductID.String(), nil
	case "sync":
		return http.MethodGet, "/sell/inventory/v1/inventory_item", nil
	case "orders":
		return http.MethodGet, "/sell/fulfillment/v1/order", nil
	case "message":
		return http.MethodGet, "/post-order/v2/inquiry/search", nil
	default:
		return "", "", fmt.Errorf("%w: unsupported action %q", marketplace.ErrAdapterRejected, req.Action)
	}
}

// doRequest performs an HTTP request against the eBay API
func (a *EbayAdapter) doRequest(ctx context.Context, config *EbayConfig, method, path string, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if len(payload) > 0 {
		reqBody = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, config.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("ebay: failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+config.AccessToken)
	httpReq.Header.Set("X-EBAY-C-MARKETPLACE-ID", config.MarketplaceID)
	httpReq.Header.Set("Content-Language", "de-DE")
	if len(payload) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", marketplace.ErrAdapterUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("ebay: failed to read response: %w", err)
	}

	if err := marketplace.ClassifyStatus(resp.StatusCode); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: HTTP %d", err, resp.StatusCode)
	}

	return body, resp.StatusCode, nil
}

// ebayExternalID extracts the listing id from an eBay response body.
func ebayExternalID(body []byte) string {
	var parsed struct {
		ListingID string `json:"listingId"`
		SKU       string `json:"sku"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.ListingID != "" {
		return parsed.ListingID
	}
	return parsed.SKU
}

// Ensure EbayAdapter implements the Adapter interface
var _ marketplace.Adapter = (*EbayAdapter)(nil)
