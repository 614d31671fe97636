package onepay

import "onepay-payment-adapter/internal/domain/ports/adapter"

// FieldSet aliases the port type so the signing primitives can be used
// directly on payloads passing through the gateway port.
type FieldSet = adapter.FieldSet

// Wire field names. These are provider-mandated and non-negotiable.
const (
	FieldSecureHash         = "vpc_SecureHash"
	FieldReference          = "vpc_MerchTxnRef"
	FieldAmount             = "vpc_Amount"
	FieldCurrencyCode       = "vpc_CurrencyCode"
	FieldCurrency           = "vpc_Currency"
	FieldAccessCode         = "vpc_AccessCode"
	FieldMerchant           = "vpc_Merchant"
	FieldLocale             = "vpc_Locale"
	FieldVersion            = "vpc_Version"
	FieldCommand            = "vpc_Command"
	FieldTicketNo           = "vpc_TicketNo"
	FieldOrderInfo          = "vpc_OrderInfo"
	FieldReturnURL          = "vpc_ReturnURL"
	FieldUser               = "vpc_User"
	FieldPassword           = "vpc_Password"
	FieldTxnResponseCode    = "vpc_TxnResponseCode"
	FieldAuthenticationDate = "vpc_AuthenticationDate"
	FieldCustomerEmail      = "vpc_Customer_Email"
	FieldCustomerPhone      = "vpc_Customer_Phone"
	FieldCustomerID         = "vpc_Customer_Id"

	FieldAuthResult         = "authResult"
	FieldPSPReference       = "pspReference"
	FieldMerchantReturnData = "merchantReturnData"
	FieldResURL             = "resURL"
	FieldSessionValidity    = "sessionValidity"
	FieldShipBeforeDate     = "shipBeforeDate"
	FieldEventCode          = "eventCode"
	FieldSuccess            = "success"
	FieldPendingReason      = "pending_reason"
)

// Variant tags one canonicalization+signing scheme and direction. Each
// variant carries its own allow-list and join/escape strategy; they are
// deliberately not unified because the provider contracts differ bit for bit.
type Variant int

const (
	// OutboundSHA256 signs requests we send to the provider under the
	// SHA-256 scheme.
	OutboundSHA256 Variant = iota
	// InboundSHA256 verifies callbacks the provider sends to us.
	InboundSHA256
	// LegacySHA1Out / LegacySHA1In are the deprecated SHA-1 equivalents.
	LegacySHA1Out
	LegacySHA1In
	// CCForm is the vpc_-prefixed name=value form used by the cc card flow
	// and the queryDR endpoint.
	CCForm
)

func (v Variant) String() string {
	switch v {
	case OutboundSHA256:
		return "sha256-out"
	case InboundSHA256:
		return "sha256-in"
	case LegacySHA1Out:
		return "sha1-out"
	case LegacySHA1In:
		return "sha1-in"
	case CCForm:
		return "cc-form"
	}
	return "unknown"
}

// Allow-lists are a hardcoded contract with the provider. The outbound
// SHA-256 list includes resURL even though the provider documentation claims
// it is optional; leaving it out produces signatures the provider rejects.
var (
	outboundSHA256Fields = []string{
		FieldReference, FieldAmount, FieldCurrencyCode, FieldShipBeforeDate, FieldAccessCode,
		FieldMerchant, FieldSessionValidity, FieldMerchantReturnData, "shopperEmail",
		"shopperReference", "allowedMethods", "blockedMethods", "offset",
		"shopperStatement", "recurringContract", "billingAddressType",
		"deliveryAddressType", "brandCode", "countryCode", FieldLocale, "orderData",
		"offerEmail", FieldResURL,
	}

	inboundSHA256Fields = []string{
		FieldAuthResult, FieldReference, FieldMerchantReturnData, "paymentMethod",
		FieldPSPReference, FieldLocale, FieldAccessCode,
	}

	// The legacy lists are order-significant: values are concatenated in
	// exactly this sequence.
	legacySHA1OutFields = []string{
		FieldAmount, FieldCurrencyCode, FieldShipBeforeDate, FieldReference, FieldAccessCode,
		FieldMerchant, FieldSessionValidity, "shopperEmail", "shopperReference",
		"recurringContract", "allowedMethods", "blockedMethods", "shopperStatement",
		FieldMerchantReturnData, "billingAddressType", "deliveryAddressType", "offset",
	}

	legacySHA1InFields = []string{
		FieldAuthResult, FieldPSPReference, FieldReference, FieldAccessCode, FieldMerchantReturnData,
	}
)
