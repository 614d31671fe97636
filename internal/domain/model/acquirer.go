package model

import (
	"strings"

	"onepay-payment-adapter/internal/domain"
)

type Environment string

const (
	EnvTest Environment = "test"
	EnvProd Environment = "prod"
)

// SignatureScheme selects which signing contract an acquirer uses.
// The choice is configuration-declared; secret-shape inference is only a
// fallback for records migrated without an explicit scheme.
type SignatureScheme string

const (
	SchemeSHA256 SignatureScheme = "sha256" // HMAC-SHA256 over colon-joined keys-then-values, hex key, base64 digest
	SchemeSHA1   SignatureScheme = "sha1"   // legacy HMAC-SHA1 over concatenated values, ascii key, base64 digest
	SchemeCC     SignatureScheme = "cc"     // HMAC-SHA256 over name=value&... form, hex key, uppercase hex digest
)

// AcquirerConfig identifies one provider integration instance. It must be
// treated as immutable while any transaction referencing it is in flight.
type AcquirerConfig struct {
	ID              string
	MerchantAccount string // vpc_Merchant
	AccessCode      string // vpc_AccessCode
	SecretHash      string // HMAC secret; hex for sha256/cc, ascii for sha1
	Scheme          SignatureScheme
	Environment     Environment
	Locale          string
	User            string // queryDR credentials (cc scheme)
	Password        string
}

// Validate reports whether the fields required for signing are present.
func (c *AcquirerConfig) Validate() error {
	if c == nil || c.MerchantAccount == "" || c.AccessCode == "" || c.SecretHash == "" {
		return domain.ErrConfiguration
	}
	return nil
}

// SignatureScheme returns the declared scheme, falling back to inferring the
// SHA-256 scheme from a 64-hex-char secret the way the provider's legacy
// integrations did.
func (c *AcquirerConfig) SignatureScheme() SignatureScheme {
	if c.Scheme != "" {
		return c.Scheme
	}
	if len(c.SecretHash) == 64 && isHex(c.SecretHash) {
		return SchemeSHA256
	}
	return SchemeSHA1
}

// FormActionURL is the browser-redirect endpoint for this environment.
func (c *AcquirerConfig) FormActionURL() string {
	if c.Environment == EnvProd {
		return "https://onepay.vn/onecomm-pay/vpc.op"
	}
	return "https://mtf.onepay.vn/onecomm-pay/vpc.op"
}

// QueryURL is the server-to-server queryDR endpoint for this environment.
func (c *AcquirerConfig) QueryURL() string {
	if c.Environment == EnvProd {
		return "https://onepay.vn/onecomm-pay/Vpcdps.op"
	}
	return "https://mtf.onepay.vn/onecomm-pay/Vpcdps.op"
}

func isHex(s string) bool {
	for _, r := range strings.ToLower(s) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
