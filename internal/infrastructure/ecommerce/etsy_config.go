package ecommerce

import "errors"

// EtsyConfig holds configuration for the Etsy Open API v3
type EtsyConfig struct {
	// APIKey is the application keystring
	APIKey string
	// AccessToken is the OAuth 2.0 access token
	AccessToken string
	// ShopID is the numeric shop identifier
	ShopID string
	// APIBaseURL is the base URL for the Etsy API
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// EtsyDefaultAPIURL is the production API endpoint
const EtsyDefaultAPIURL = "https://openapi.etsy.com"

// Errors for Etsy configuration
var (
	ErrEtsyConfigMissingAPIKey      = errors.New("etsy: api key is required")
	ErrEtsyConfigMissingAccessToken = errors.New("etsy: access token is required")
	ErrEtsyConfigMissingShopID      = errors.New("etsy: shop id is required")
)

// NewEtsyConfig creates a new Etsy configuration with defaults
func NewEtsyConfig(apiKey, accessToken, shopID string) *EtsyConfig {
	return &EtsyConfig{
		APIKey:         apiKey,
		AccessToken:    accessToken,
		ShopID:         shopID,
		APIBaseURL:     EtsyDefaultAPIURL,
		TimeoutSeconds: 30,
	}
}

// Validate validates the Etsy configuration
func (c *EtsyConfig) Validate() error {
	if c.APIKey == "" {
		return ErrEtsyConfigMissingAPIKey
	}
	if c.AccessToken == "" {
		return ErrEtsyConfigMissingAccessToken
	}
	if c.ShopID == "" {
		return ErrEtsyConfigMissingShopID
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = EtsyDefaultAPIURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
