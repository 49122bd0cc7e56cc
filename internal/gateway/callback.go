package gateway

import (
	"fmt"
	"time"
)

// STKCallbackEnvelope is the wire shape the provider POSTs to the callback URL
type STKCallbackEnvelope struct {
	Body struct {
		STKCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback is the provider's asynchronous result for an STK push
type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata is the name/value list attached to successful callbacks
type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem is a single name/value pair. Values arrive as strings or
// numbers depending on the field, so they are kept loosely typed.
type MetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

// TransactionDetails are the fields extracted from a successful callback
type TransactionDetails struct {
	Phone           string
	ReceiptNumber   string
	TransactionDate time.Time
}

// ExtractTransactionDetails pulls phone, receipt number and transaction date
// out of the callback metadata list.
func ExtractTransactionDetails(cb *STKCallback) (*TransactionDetails, error) {
	if cb.CallbackMetadata == nil {
		return nil, fmt.Errorf("callback has no metadata")
	}

	var details TransactionDetails
	var dateStr string

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "PhoneNumber":
			details.Phone = metadataString(item.Value)
		case "MpesaReceiptNumber":
			details.ReceiptNumber = metadataString(item.Value)
		case "TransactionDate":
			dateStr = metadataString(item.Value)
		}
	}

	if details.ReceiptNumber == "" {
		return nil, fmt.Errorf("callback metadata missing MpesaReceiptNumber")
	}

	date, err := ParseTransactionDate(dateStr)
	if err != nil {
		return nil, err
	}
	details.TransactionDate = date

	return &details, nil
}

// ParseTransactionDate parses the provider's 14-digit YYYYMMDDHHMMSS timestamp
func ParseTransactionDate(s string) (time.Time, error) {
	if len(s) != len(timestampLayout) {
		return time.Time{}, fmt.Errorf("invalid transaction date %q: want %d digits", s, len(timestampLayout))
	}
	t, err := time.ParseInLocation(timestampLayout, s, nairobi)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid transaction date %q: %w", s, err)
	}
	return t, nil
}

func metadataString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; phone numbers and dates fit in
		// 14 digits so %.0f is lossless here.
		return fmt.Sprintf("%.0f", val)
	default:
		return ""
	}
}
