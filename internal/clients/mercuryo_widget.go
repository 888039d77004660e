package clients

import (
	"crypto/sha512"
	"encoding/hex"
	"net/url"

	"payrouter/internal/config"

	"github.com/shopspring/decimal"
)

const (
	mercuryoSandboxURL = "https://sandbox-exchange.mrcr.io"
	mercuryoProdURL    = "https://exchange.mercuryo.io"
)

// MercuryoWidget builds signed on-ramp widget links. Mercuryo has no server
// API for this flow, the wallet address is authenticated by a sha512
// signature over address and shared secret.
type MercuryoWidget struct {
	baseURL  string
	widgetID string
	secret   string
}

func NewMercuryoWidget(cfg config.MercuryoConfig) *MercuryoWidget {
	baseURL := mercuryoProdURL
	if cfg.Mode != "Prod" {
		baseURL = mercuryoSandboxURL
	}
	return &MercuryoWidget{
		baseURL:  baseURL,
		widgetID: cfg.WidgetID,
		secret:   cfg.Secret,
	}
}

// Sign produces the widget signature for a wallet address.
func (w *MercuryoWidget) Sign(address string) string {
	sum := sha512.Sum512([]byte(address + w.secret))
	return hex.EncodeToString(sum[:])
}

// PaymentURL builds the signed widget link for buying the given amount of
// currency straight to the destination address.
func (w *MercuryoWidget) PaymentURL(address, currency, network string, amount decimal.Decimal) string {
	params := url.Values{}
	params.Add("widget_id", w.widgetID)
	params.Add("type", "buy")
	params.Add("currency", currency)
	params.Add("network", network)
	params.Add("amount", amount.String())
	params.Add("address", address)
	params.Add("signature", w.Sign(address))
	return w.baseURL + "/?" + params.Encode()
}
