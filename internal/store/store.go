package store

import "github.com/shopspring/decimal"

// Store is a tenant storefront. Gateway credentials are per store.
type Store struct {
	ID       int64           `json:"id"`
	Slug     string          `json:"slug"`
	Name     string          `json:"name"`
	Currency string          `json:"currency"`
	TaxRate  decimal.Decimal `json:"taxRate"` // percent, e.g. 7.5
	Gateways Gateways        `json:"-"`
}

// Gateways holds the payment provider settings of a store. A zero value for a
// provider means it is not configured.
type Gateways struct {
	COD         CODSettings         `json:"cod"`
	Stripe      StripeSettings      `json:"stripe"`
	PayPal      PayPalSettings      `json:"paypal"`
	PayFast     PayFastSettings     `json:"payfast"`
	MercadoPago MercadoPagoSettings `json:"mercadopago"`
}

type CODSettings struct {
	Enabled bool `json:"enabled"`
}

type StripeSettings struct {
	SecretKey string `json:"secretKey"`
}

type PayPalSettings struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Sandbox      bool   `json:"sandbox"`
}

type PayFastSettings struct {
	MerchantID  string `json:"merchantId"`
	MerchantKey string `json:"merchantKey"`
	Passphrase  string `json:"passphrase"`
	Sandbox     bool   `json:"sandbox"`
}

type MercadoPagoSettings struct {
	AccessToken string `json:"accessToken"`
	Sandbox     bool   `json:"sandbox"`
}
