package ecommerce

import "errors"

// EbayConfig holds configuration for the eBay Sell APIs
type EbayConfig struct {
	// ClientID is the OAuth application client id
	ClientID string
	// ClientSecret is the OAuth application client secret
	ClientSecret string
	// AccessToken is the user OAuth access token
	AccessToken string
	// MarketplaceID selects the eBay site, e.g. EBAY_DE
	MarketplaceID string
	// APIBaseURL is the base URL for the eBay API (production or sandbox)
	APIBaseURL string
	// IsSandbox indicates if this is a sandbox environment
	IsSandbox bool
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// EbayProductionAPIURL is the production API endpoint
	EbayProductionAPIURL = "https://api.ebay.com"
	// EbaySandboxAPIURL is the sandbox API endpoint
	EbaySandboxAPIURL = "https://api.sandbox.ebay.com"
)

// Errors for eBay configuration
var (
	ErrEbayConfigMissingClientID    = errors.New("ebay: client id is required")
	ErrEbayConfigMissingAccessToken = errors.New("ebay: access token is required")
)

// NewEbayConfig creates a new eBay configuration with defaults
func NewEbayConfig(clientID, clientSecret, accessToken string) *EbayConfig {
	return &EbayConfig{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		AccessToken:    accessToken,
		MarketplaceID:  "EBAY_DE",
		APIBaseURL:     EbayProductionAPIURL,
		TimeoutSeconds: 30,
	}
}

// Validate validates the eBay configuration
func (c *EbayConfig) Validate() error {
	if c.ClientID == "" {
		return ErrEbayConfigMissingClientID
	}
	if c.AccessToken == "" {
		return ErrEbayConfigMissingAccessToken
	}
	if c.MarketplaceID == "" {
		c.MarketplaceID = "EBAY_DE"
	}
	if c.APIBaseURL == "" {
		if c.IsSandbox {
			c.APIBaseURL = EbaySandboxAPIURL
		} else {
			c.APIBaseURL = EbayProductionAPIURL
		}
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
