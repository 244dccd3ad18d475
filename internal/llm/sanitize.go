package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reFence   = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*\\n?(.*?)\\n?\\s*```\\s*$")
	reLeadNum = regexp.MustCompile(`^\s*(-?\d+(?:[.,]\d+)?)`)
)

// StripCodeFences removes a surrounding ```json fence that some models add
// even in JSON mode.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := reFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

var (
	allowedRootKeys = map[string]struct{}{"valid": {}, "reason": {}, "raw_text": {}, "items": {}}
	allowedItemKeys = map[string]struct{}{
		"name": {}, "quantity": {}, "unit": {}, "category": {}, "confidence": {}, "expiry_days": {},
	}
)

// SanitizeItemsPayload normalizes the common ways a model drifts from the
// items schema so the document can still validate:
//   - a bare array is wrapped as {"items": [...]}
//   - null values and unknown keys are removed
//   - numeric strings ("1.5", "2개") are coerced to numbers
//   - items without a usable name are dropped
//
// It returns the re-encoded document and the list of touched fields.
func SanitizeItemsPayload(doc []byte) ([]byte, []string, error) {
	var root any
	if err := json.Unmarshal(doc, &root); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var m map[string]any
	var dropped []string
	switch t := root.(type) {
	case map[string]any:
		m = t
	case []any:
		m = map[string]any{"items": t}
		dropped = append(dropped, "root(array)")
	default:
		return nil, nil, fmt.Errorf("sanitize: unexpected root %T", root)
	}

	for k := range maps.Clone(m) {
		if _, ok := allowedRootKeys[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	if v, ok := m["valid"]; ok {
		switch t := v.(type) {
		case bool:
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(t))
			if err != nil {
				delete(m, "valid")
				dropped = append(dropped, "valid(type)")
			} else {
				m["valid"] = b
			}
		default:
			delete(m, "valid")
			dropped = append(dropped, "valid(type)")
		}
	}
	for _, k := range []string{"reason", "raw_text"} {
		if v, ok := m[k]; ok {
			if s, isStr := v.(string); isStr {
				m[k] = strings.TrimSpace(s)
			} else {
				delete(m, k)
				dropped = append(dropped, k+"(type)")
			}
		}
	}

	switch items := m["items"].(type) {
	case nil:
		if _, present := m["items"]; present {
			m["items"] = []any{}
			dropped = append(dropped, "items(null)")
		}
	case []any:
		kept := make([]any, 0, len(items))
		for i, it := range items {
			obj, ok := it.(map[string]any)
			if !ok {
				dropped = append(dropped, fmt.Sprintf("items[%d](type)", i))
				continue
			}
			if sanitizeItem(obj, i, &dropped) {
				kept = append(kept, obj)
			}
		}
		m["items"] = kept
	default:
		m["items"] = []any{}
		dropped = append(dropped, "items(type)")
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, dropped, nil
}

func sanitizeItem(obj map[string]any, idx int, dropped *[]string) bool {
	field := func(k, why string) string { return fmt.Sprintf("items[%d].%s(%s)", idx, k, why) }

	for k, v := range maps.Clone(obj) {
		if _, ok := allowedItemKeys[k]; !ok {
			delete(obj, k)
			*dropped = append(*dropped, field(k, "unknown"))
			continue
		}
		if v == nil {
			delete(obj, k)
			*dropped = append(*dropped, field(k, "null"))
		}
	}

	name, _ := obj["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		*dropped = append(*dropped, field("name", "missing"))
		return false
	}
	obj["name"] = name

	for _, k := range []string{"unit", "category"} {
		if v, ok := obj[k]; ok {
			s, isStr := v.(string)
			if !isStr || strings.TrimSpace(s) == "" {
				delete(obj, k)
				*dropped = append(*dropped, field(k, "type"))
				continue
			}
			obj[k] = strings.TrimSpace(s)
		}
	}

	for _, k := range []string{"quantity", "confidence", "expiry_days"} {
		v, ok := obj[k]
		if !ok {
			continue
		}
		f, ok := coerceNumber(v)
		if !ok {
			delete(obj, k)
			*dropped = append(*dropped, field(k, "type"))
			continue
		}
		if k == "expiry_days" {
			obj[k] = int(math.Round(f))
		} else {
			obj[k] = f
		}
	}
	return true
}

func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case string:
		m := reLeadNum.FindStringSubmatch(t)
		if m == nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
