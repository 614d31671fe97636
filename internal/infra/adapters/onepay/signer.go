package onepay

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"onepay-payment-adapter/internal/domain"
)

// Sign computes the keyed digest of signingString under the variant's
// algorithm and encoding. The key decoding, hash function and digest
// encoding all differ per variant and must not be unified.
func Sign(v Variant, secret, signingString string) (string, error) {
	switch v {
	case OutboundSHA256, InboundSHA256:
		key, err := hex.DecodeString(secret)
		if err != nil {
			return "", fmt.Errorf("%w: secret is not valid hex", domain.ErrMalformedInput)
		}
		mac := hmac.New(sha256.New, key)
		mac.Write([]byte(signingString))
		return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil

	case LegacySHA1Out, LegacySHA1In:
		mac := hmac.New(sha1.New, []byte(secret))
		mac.Write([]byte(signingString))
		return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil

	case CCForm:
		key, err := hex.DecodeString(secret)
		if err != nil {
			return "", fmt.Errorf("%w: secret is not valid hex", domain.ErrMalformedInput)
		}
		mac := hmac.New(sha256.New, key)
		mac.Write([]byte(signingString))
		return strings.ToUpper(hex.EncodeToString(mac.Sum(nil))), nil
	}
	return "", fmt.Errorf("%w: unknown signature variant %d", domain.ErrInvalidArgument, v)
}

// Verify recomputes the digest and compares it against the candidate in
// constant time. A wrong signature returns (false, nil); only malformed
// input (undecodable secret, unknown variant) yields an error.
func Verify(v Variant, secret, signingString, candidate string) (bool, error) {
	if candidate == "" {
		return false, nil
	}
	expected, err := Sign(v, secret, signingString)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(candidate)), nil
}
