package ecommerce

import "errors"

// VintedConfig holds configuration for the Vinted web API. Vinted has no
// official partner API; calls authenticate with a logged-in session cookie
// and CSRF token, the same way the web client does.
type VintedConfig struct {
	// SessionCookie is the _vinted_fr_session cookie value
	SessionCookie string
	// CSRFToken is the X-CSRF-Token header value paired with the session
	CSRFToken string
	// UserAgent is sent on every request; Vinted rejects unknown clients
	UserAgent string
	// APIBaseURL is the base URL for the Vinted API
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// VintedDefaultAPIURL is the production API endpoint
const VintedDefaultAPIURL = "https://www.vinted.fr/api/v2"

// Errors for Vinted configuration
var (
	ErrVintedConfigMissingSession   = errors.New("vinted: session cookie is required")
	ErrVintedConfigMissingCSRFToken = errors.New("vinted: csrf token is required")
)

// NewVintedConfig creates a new Vinted configuration with defaults
func NewVintedConfig(sessionCookie, csrfToken string) *VintedConfig {
	return &VintedConfig{
		SessionCookie:  sessionCookie,
		CSRFToken:      csrfToken,
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
		APIBaseURL:     VintedDefaultAPIURL,
		TimeoutSeconds: 30,
	}
}

// Validate validates the Vinted configuration
func (c *VintedConfig) Validate() error {
	if c.SessionCookie == "" {
		return ErrVintedConfigMissingSession
	}
	if c.CSRFToken == "" {
		return ErrVintedConfigMissingCSRFToken
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = VintedDefaultAPIURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
