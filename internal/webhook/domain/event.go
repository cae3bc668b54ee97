package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Envelope is the billing provider's webhook body.
type Envelope struct {
	APIVersion string `json:"api_version"`
	Event      Event  `json:"event"`
}

type Event struct {
	ID                   string                     `json:"id"`
	Type                 string                     `json:"type"`
	AppUserID            string                     `json:"app_user_id"`
	ProductID            string                     `json:"product_id"`
	Price                json.RawMessage            `json:"price"`
	SubscriberAttributes map[string]json.RawMessage `json:"subscriber_attributes"`
	Attributes           map[string]json.RawMessage `json:"attributes"`
}

// PriceValue reads the event price, treating absent, null or unparsable
// values as zero. The second result is false when a value was present but
// could not be parsed.
func (e Event) PriceValue() (decimal.Decimal, bool) {
	raw := strings.TrimSpace(string(e.Price))
	if raw == "" || raw == "null" {
		return decimal.Zero, true
	}
	raw = strings.Trim(raw, `"`)
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

// attributeValue returns the string under "value" of an attribute object,
// or "" for anything else.
func attributeValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var attr struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &attr); err != nil {
		return ""
	}
	var value string
	if err := json.Unmarshal(attr.Value, &value); err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}
