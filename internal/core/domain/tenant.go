package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents a registered external service that collects money
// through the gateway.
type Tenant struct {
	ID                 uuid.UUID `json:"id"`
	Slug               string    `json:"slug"`
	APIKey             string    `json:"api_key"`
	APISecretEnc       string    `json:"-"` // encrypted at rest, never exposed
	IsActive           bool      `json:"is_active"`
	AllowedCurrencies  []string  `json:"allowed_currencies,omitempty"`
	AllowedIPs         []string  `json:"allowed_ips,omitempty"`
	WebhookURL         string    `json:"webhook_url,omitempty"`
	DefaultCallbackURL string    `json:"default_callback_url,omitempty"`
	ContactEmail       string    `json:"contact_email,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AcceptsCurrency reports whether this tenant may transact in currency.
// An empty allowlist means all supported currencies are accepted.
func (t *Tenant) AcceptsCurrency(currency string) bool {
	if len(t.AllowedCurrencies) == 0 {
		return true
	}
	for _, c := range t.AllowedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}

// AllowsIP reports whether clientIP may call on behalf of this tenant.
// An empty allowlist means unrestricted.
func (t *Tenant) AllowsIP(clientIP string) bool {
	if len(t.AllowedIPs) == 0 {
		return true
	}
	for _, ip := range t.AllowedIPs {
		if ip == clientIP {
			return true
		}
	}
	return false
}

// HasWebhook reports whether this tenant has a webhook URL configured.
func (t *Tenant) HasWebhook() bool {
	return t.WebhookURL != ""
}
