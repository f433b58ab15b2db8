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

// VintedAdapter implements the marketplace Adapter interface for Vinted
type VintedAdapter struct {
	config     *VintedConfig
	httpClient *http.Client

	// tenantConfigs stores per-tenant session credentials
	tenantConfigs map[uuid.UUID]*VintedConfig
	mu            stdsync.RWMutex
}

// NewVintedAdapter creates a new Vinted adapter with the given default
// configuration. Pass nil to require per-tenant credentials.
func NewVintedAdapter(config *VintedConfig) (*VintedAdapter, error) {
	timeout := 30 * time.Second
	if config != nil {
		if err := config.Validate(); err != nil {
			return nil, err
		}
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	return &VintedAdapter{
		config:        config,
		httpClient:    &http.Client{Timeout: timeout},
		tenantConfigs: make(map[uuid.UUID]*VintedConfig),
	}, nil
}

// SetTenantConfig sets the session credentials for a specific tenant
func (a *VintedAdapter) SetTenantConfig(tenantID uuid.UUID, config *VintedConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tenantConfigs[tenantID] = config
	return nil
}

func (a *VintedAdapter) getTenantConfig(tenantID uuid.UUID) (*VintedConfig, error) {
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
func (a *VintedAdapter) Code() marketplace.Code {
	return marketplace.CodeVinted
}

// Execute performs one call against the Vinted API.
func (a *VintedAdapter) Execute(ctx context.Context, req marketplace.Request) (*marketplace.Response, error) {
	config, err := a.getTenantConfig(req.TenantID)
	if err != nil {
		return nil, err
	}

	method, path, err := vintedEndpoint(req)
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
		ExternalID: vintedExternalID(body),
	}, nil
}

// vintedEndpoint maps an action to the Vinted API route.
func vintedEndpoint(req marketplace.Request) (method, path string, err error) {
	switch req.Action {
	case "publish":
		return http.MethodPost, "/items", nil
	case "update":
		if req.ProductID == nil {
			return "", "", fmt.Errorf("%w: update requires a product", marketplace.ErrAdapterRejected)
		}
		return http.MethodPut, "/items/" + req.ProductID.String(), nil
	case "delete":
		if req.ProductID == nil {
			return "", "", fmt.Errorf("%w: delete requires a product", marketplace.ErrAdapterRejected)
		}
		return http.MethodDelete, "/items/" + req.ProductID.String(), nil
	case "sync":
		return http.MethodGet, "/items", nil
	case "orders":
		return http.MethodGet, "/transactions", nil
	case "message":
		return http.MethodGet, "/conversations", nil
	default:
		return "", "", fmt.Errorf("%w: unsupported action %q", marketplace.ErrAdapterRejected, req.Action)
	}
}

// doRequest performs an HTTP request against the Vinted API
func (a *VintedAdapter) doRequest(ctx context.Context, config *VintedConfig, method, path string, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if len(payload) > 0 {
		reqBody = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, config.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("vinted: failed to create request: %w", err)
	}

	httpReq.Header.Set("Cookie", "_vinted_fr_session="+config.SessionCookie)
	httpReq.Header.Set("X-CSRF-Token", config.CSRFToken)
	httpReq.Header.Set("User-Agent", config.UserAgent)
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
		return nil, 0, fmt.Errorf("vinted: failed to read response: %w", err)
	}

	if err := marketplace.ClassifyStatus(resp.StatusCode); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: HTTP %d", err, resp.StatusCode)
	}

	return body, resp.StatusCode, nil
}

// vintedExternalID extracts the listing id from a Vinted response body.
// Returns empty when the body carries none.
func vintedExternalID(body []byte) string {
	var parsed struct {
		Item struct {
			ID int64 `json:"id"`
		} `json:"item"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.Item.ID == 0 {
		return ""
	}
	return strconv.FormatInt(parsed.Item.ID, 10)
}

// Ensure VintedAdapter implements the Adapter interface
var _ marketplace.Adapter = (*VintedAdapter)(nil)
