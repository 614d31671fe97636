package onepay

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"onepay-payment-adapter/internal/domain"
	"onepay-payment-adapter/internal/domain/model"
	"onepay-payment-adapter/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*Gateway)(nil)

// Gateway implements the provider port: it assembles and signs outbound
// field sets and verifies inbound ones. It performs no I/O of its own apart
// from QueryStatus, which it delegates to the query client.
type Gateway struct {
	callbackURL string // where the provider posts its callbacks (resURL / vpc_ReturnURL)
	query       *QueryClient
	now         func() time.Time
}

func NewGateway(callbackURL string, query *QueryClient) (*Gateway, error) {
	if callbackURL == "" {
		return nil, fmt.Errorf("%w: callback url empty", domain.ErrConfiguration)
	}
	return &Gateway{callbackURL: callbackURL, query: query, now: time.Now}, nil
}

func (g *Gateway) Name() string { return "onepay" }

// BuildRequest populates the full allow-listed field set for the config's
// signature scheme and attaches the digest under vpc_SecureHash. The caller
// form-encodes and transmits the result; no I/O happens here.
func (g *Gateway) BuildRequest(t *model.Transaction, cfg *model.AcquirerConfig, returnURL string) (FieldSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SignatureScheme() == model.SchemeCC {
		return g.buildCCRequest(t, cfg)
	}
	return g.buildRedirectRequest(t, cfg, returnURL)
}

func (g *Gateway) buildRedirectRequest(t *model.Transaction, cfg *model.AcquirerConfig, returnURL string) (FieldSet, error) {
	// Session and shipping deadlines are a fixed one day out.
	deadline := g.now().AddDate(0, 0, 1).Format("2006-01-02")

	fields := FieldSet{
		FieldReference:       t.Reference,
		FieldAmount:          strconv.FormatInt(model.MinorUnits(t.Amount, t.Currency), 10),
		FieldCurrencyCode:    t.Currency,
		FieldShipBeforeDate:  deadline,
		FieldAccessCode:      cfg.AccessCode,
		FieldMerchant:        cfg.MerchantAccount,
		FieldLocale:          locale(cfg, "en"),
		FieldSessionValidity: deadline,
		FieldResURL:          g.callbackURL,
		FieldVersion:         "2",
	}
	if returnURL != "" {
		// merchantReturnData survives the provider round trip and carries
		// the post-payment redirect target back to us.
		blob, err := json.Marshal(map[string]string{"return_url": returnURL})
		if err != nil {
			return nil, fmt.Errorf("encode merchantReturnData: %w", err)
		}
		fields[FieldMerchantReturnData] = string(blob)
	}

	variant := OutboundSHA256
	if cfg.SignatureScheme() == model.SchemeSHA1 {
		variant = LegacySHA1Out
	}
	sig, err := Sign(variant, cfg.SecretHash, Canonical(variant, fields))
	if err != nil {
		return nil, err
	}
	fields[FieldSecureHash] = sig
	return fields, nil
}

func (g *Gateway) buildCCRequest(t *model.Transaction, cfg *model.AcquirerConfig) (FieldSet, error) {
	orderInfo := t.OrderInfo
	if orderInfo == "" {
		orderInfo = t.Reference
	}
	fields := FieldSet{
		FieldVersion:    "2",
		FieldCurrency:   t.Currency,
		FieldCommand:    "pay",
		FieldAccessCode: cfg.AccessCode,
		FieldMerchant:   cfg.MerchantAccount,
		FieldLocale:     locale(cfg, "vn"),
		FieldReturnURL:  g.callbackURL,
		FieldReference:  t.Reference,
		FieldOrderInfo:  orderInfo,
		// The cc flow always transmits hundredths regardless of currency.
		FieldAmount: strconv.FormatInt(int64(math.Round(t.Amount*100)), 10),
	}
	if t.CustomerIP != "" {
		fields[FieldTicketNo] = t.CustomerIP
	}
	if t.CustomerEmail != "" {
		fields[FieldCustomerEmail] = t.CustomerEmail
	}
	if t.CustomerPhone != "" {
		fields[FieldCustomerPhone] = t.CustomerPhone
	}
	if t.CustomerID != "" {
		fields[FieldCustomerID] = t.CustomerID
	}

	sig, err := Sign(CCForm, cfg.SecretHash, Canonical(CCForm, fields))
	if err != nil {
		return nil, err
	}
	fields[FieldSecureHash] = sig
	return fields, nil
}

// VerifyNotification re-derives the expected digest over the raw callback
// fields using the inbound variant for the config's scheme and checks it in
// constant time.
func (g *Gateway) VerifyNotification(fields FieldSet, cfg *model.AcquirerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	candidate := fields[FieldSecureHash]
	if candidate == "" {
		return fmt.Errorf("%w: missing %s", domain.ErrMalformedInput, FieldSecureHash)
	}

	var variant Variant
	switch cfg.SignatureScheme() {
	case model.SchemeSHA256:
		variant = InboundSHA256
	case model.SchemeSHA1:
		variant = LegacySHA1In
	case model.SchemeCC:
		variant = CCForm
	}

	ok, err := Verify(variant, cfg.SecretHash, Canonical(variant, fields), candidate)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSignatureMismatch
	}
	return nil
}

// QueryStatus performs the signed queryDR GET for a transaction.
func (g *Gateway) QueryStatus(ctx context.Context, t *model.Transaction, cfg *model.AcquirerConfig) (adapter.QueryResult, error) {
	if g.query == nil {
		return adapter.QueryResult{}, fmt.Errorf("%w: query client not configured", domain.ErrConfiguration)
	}
	return g.query.QueryStatus(ctx, t, cfg)
}

func locale(cfg *model.AcquirerConfig, fallback string) string {
	if cfg.Locale != "" {
		return cfg.Locale
	}
	return fallback
}
