package onepay

import (
	"sort"
	"strings"
)

// Canonical builds the deterministic signing string for a field set under
// the given variant. The output feeds straight into Sign/Verify and contains
// payment data: log it only through logging.Redact.
func Canonical(v Variant, fields FieldSet) string {
	switch v {
	case OutboundSHA256:
		return canonicalSHA256(outboundSHA256Fields, fields)
	case InboundSHA256:
		return canonicalSHA256(inboundSHA256Fields, fields)
	case LegacySHA1Out:
		return canonicalLegacy(legacySHA1OutFields, fields)
	case LegacySHA1In:
		return canonicalLegacy(legacySHA1InFields, fields)
	case CCForm:
		return canonicalCCForm(fields)
	}
	return ""
}

// escapeVal doubles backslashes and backslash-prefixes colons so values
// cannot break the colon-joined signing string.
func escapeVal(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, ":", `\:`)
}

// canonicalSHA256 keeps the allow-listed fields present in the input (absent
// fields are omitted, not defaulted), sorts the pairs by field name, and
// joins first all escaped names then all escaped values with colons. The
// keys-then-values order is a provider quirk and must not be interleaved.
func canonicalSHA256(allowed []string, fields FieldSet) string {
	names := make([]string, 0, len(allowed))
	for _, k := range allowed {
		if _, ok := fields[k]; ok {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names)*2)
	for _, k := range names {
		parts = append(parts, escapeVal(k))
	}
	for _, k := range names {
		parts = append(parts, escapeVal(fields[k]))
	}
	return strings.Join(parts, ":")
}

// canonicalLegacy concatenates the raw values in the allow-list's fixed
// order with no separators or escaping; absent fields contribute an empty
// string.
func canonicalLegacy(allowed []string, fields FieldSet) string {
	var b strings.Builder
	for _, k := range allowed {
		b.WriteString(fields[k])
	}
	return b.String()
}

// canonicalCCForm joins every non-empty vpc_-prefixed field (except the
// signature itself) as name=value pairs with ampersands, sorted by name.
func canonicalCCForm(fields FieldSet) string {
	names := make([]string, 0, len(fields))
	for k, v := range fields {
		if k == FieldSecureHash || v == "" {
			continue
		}
		if strings.HasPrefix(k, "vpc_") {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, k := range names {
		pairs = append(pairs, k+"="+fields[k])
	}
	return strings.Join(pairs, "&")
}
