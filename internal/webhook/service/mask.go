package service

import (
	"bytes"
	"encoding/json"
	"strings"
)

const maskedValue = "***"

// maskPayload replaces personal subscriber attributes in a raw event before
// it is stored. Payloads that do not parse are dropped rather than stored raw.
func maskPayload(raw []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil
	}
	maskMap(obj)
	masked, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	return masked
}

func maskMap(m map[string]any) {
	for k, v := range m {
		switch strings.ToLower(k) {
		case "$email", "$phonenumber", "$displayname", "$ip", "email":
			m[k] = maskedValue
		default:
			if nested, ok := v.(map[string]any); ok {
				maskMap(nested)
			} else if arr, ok := v.([]any); ok {
				for _, item := range arr {
					if itemMap, ok := item.(map[string]any); ok {
						maskMap(itemMap)
					}
				}
			}
		}
	}
}
