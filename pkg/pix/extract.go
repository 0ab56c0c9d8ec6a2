package pix

import (
	"encoding/json"
	"strings"
)

// stringAt walks dot-separated candidate paths through a loosely-typed
// response map and returns the first non-empty string value. Provider
// responses expose the same semantic value under several field names
// depending on API revision, so lookups are an ordered fallback chain.
func stringAt(m map[string]any, paths ...string) string {
	for _, path := range paths {
		if v, ok := valueAt(m, path); ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}

// numberAt is stringAt for integer values, tolerating JSON numbers arriving
// as float64 or as numeric strings.
func numberAt(m map[string]any, paths ...string) int64 {
	for _, path := range paths {
		v, ok := valueAt(m, path)
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int64(n)
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i
			}
		case string:
			var f float64
			if err := json.Unmarshal([]byte(n), &f); err == nil {
				return int64(f)
			}
		}
	}
	return 0
}

func valueAt(m map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = m
	for _, part := range parts {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// chargeFromMap builds a Charge from a loosely-typed provider payload.
func chargeFromMap(m map[string]any) *Charge {
	return &Charge{
		ID:     stringAt(m, "id", "_id", "pixQrCodeId"),
		Status: stringAt(m, "status"),
		Amount: numberAt(m, "amount", "value"),
		BRCode: stringAt(m, "brCode", "brcode", "pixCopiaECola", "copyPasteCode", "payload"),
		QRCodeImage: stringAt(m,
			"brCodeBase64", "qrCodeImage", "qrCodeUrl", "qrCodeBase64"),
		ExternalID: stringAt(m, "metadata.externalId", "externalId", "external_id"),
	}
}
