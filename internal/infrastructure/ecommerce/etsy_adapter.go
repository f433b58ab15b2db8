package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/resell/backend/internal/domain/marketplace"
)

// EtsyAdapter implements the marketplace Adapter interface for Etsy using
// the Open API v3
type EtsyAdapter struct {
	config     *EtsyConfig
	httpClient *http.Client

	tenantConfigs map[uuid.UUID]*EtsyConfig
	mu            stdsync.RWMutex
}

// NewEtsyAdapter creates a new Etsy adapter with the given default
// configuration. Pass nil to require per-tenant credentials.
func NewEtsyAdapter(config *EtsyConfig) (*EtsyAdapter, error) {
	timeout := 30 * time.Second
	if config != nil {
		if err := config.Validate(); err != nil {
			return nil, err
		}
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	return &EtsyAdapter{
		config:        config,
		httpClient:    &http.Client{Timeout: timeout},
		tenantConfigs: make(map[uuid.UUID]*EtsyConfig),
	}, nil
}

// SetTenantConfig sets the credentials for a specific tenant
func (a *EtsyAdapter) SetTenantConfig(tenantID uuid.UUID, config *EtsyConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tenantConfigs[tenantID] = config
	return nil
}

func (a *EtsyAdapter) getTenantConfig(tenantID uuid.UUID) (*EtsyConfig, error) {
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
func (a *EtsyAdapter) Code() marketplace.Code {
	return marketplace.CodeEtsy
}

// Execute performs one call against the Etsy API.
func (a *EtsyAdapter) Execute(ctx context.Context, req marketplace.Request) (*marketplace.Response, error) {
	config, err := a.getTenantConfig(req.TenantID)
	if err != nil {
		return nil, err
	}

	method, path, err := etsyEndpoint(config, req)
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
		ExternalID: etsyExternalID(body),
	}, nil
}

// etsyEndpoint maps an action to the Etsy Open API route.
func etsyEndpoint(config *EtsyConfig, req marketplace.Request) (method, path string, err error) {
	shop := "/v3/application/shops/" + config.ShopID
	switch req.Action {
	case "publish":
		return http.MethodPost, shop + "/listings", nil
	case "update":
		if req.ProductID == nil {
			return "", "", fmt.Errorf("%w: update requires a product", marketplace.ErrAdapterRejected)
		}
		return http.MethodPut, shop + "/listings/" + req.ProductID.String(), nil
	case "delete":
		if req.ProductID == nil {
			return "", "", fmt.Errorf("%w: delete requires a product", marketplace.ErrAdapterRejected)
		}
		return http.MethodDelete, "/v3/application/listings/" + req.ProductID.String(), nil
	case "sync":
		return http.MethodGet, shop + "/listings", nil
	case "orders":
		return http.MethodGet, shop + "/receipts", nil
	case "message":
		return http.MethodGet, shop + "/conversations", nil
	default:
		return "", "", fmt.Errorf("%w: unsupported action %q", marketplace.ErrAdapterRejected, req.Action)
	}
}

// doRequest performs an HTTP request against the Etsy API
func (a *EtsyAdapter) doRequest(ctx context.Context, config *EtsyConfig, method, path string, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if len(payload) > 0 {
		reqBody = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, config.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("etsy: failed to create request: %w", err)
	}

	httpReq.Header.Set("x-api-key", config.APIKey)
	httpReq.Header.Set("Authorization", "Bearer "+config.AccessToken)
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
		return nil, 0, fmt.Errorf("etsy: failed to read response: %w", err)
	}

	if err := marketplace.ClassifyStatus(resp.StatusCode); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: HTTP %d", err, resp.StatusCode)
	}

	return body, resp.StatusCode, nil
}

// etsyExternalID extracts the listing id from an Etsy response body.
func etsyExternalID(body []byte) string {
	var parsed struct {
		ListingID int64 `json:"listing_id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.ListingID == 0 {
		return ""
	}
	return strconv.FormatInt(parsed.ListingID, 10)
}

// Ensure EtsyAdapter implements the Adapter interface
var _ marketplace.Adapter = (*EtsyAdapter)(nil)
