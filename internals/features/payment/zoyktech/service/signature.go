package service

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const SignatureField = "signature"

// Sign computes the Zoyktech signature of payload: the signature field is
// dropped, keys are sorted, values are joined as "k=v" with "&" and the
// result is HMAC-SHA512'd with secret (lowercase hex).
func Sign(payload map[string]any, secret string) string {
	return SignObject(OrderedFromMap(payload), secret)
}

// SignObject is Sign over an order-preserving payload. Nested arrays are
// encoded in their received order.
func SignObject(payload *OrderedObject, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(canonicalObject(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

func HasSignature(payload map[string]any) bool {
	_, ok := payload[SignatureField]
	return ok
}

// Verify reports whether payload carries a signature matching secret.
// A missing or non-string signature never verifies.
func Verify(payload map[string]any, secret string) bool {
	return VerifyObject(OrderedFromMap(payload), secret)
}

func VerifyObject(payload *OrderedObject, secret string) bool {
	raw, ok := payload.Get(SignatureField)
	if !ok {
		return false
	}
	provided, ok := raw.(string)
	if !ok {
		return false
	}
	provided = strings.ToLower(strings.TrimSpace(provided))
	if provided == "" {
		return false
	}
	expected := SignObject(payload, secret)
	return hmac.Equal([]byte(expected), []byte(provided))
}

func canonicalString(payload map[string]any) string {
	return canonicalObject(OrderedFromMap(payload))
}

func canonicalObject(payload *OrderedObject) string {
	keys := make([]string, 0, payload.Len())
	for _, k := range payload.keys {
		if k == SignatureField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(stringifyValue(payload.vals[k]))
	}
	return b.String()
}

// stringifyValue is PHP string concatenation of a top-level value; arrays
// are json_encode'd first and a failed encode contributes nothing.
func stringifyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return phpNumberString(t)
	case bool:
		if t {
			return "1"
		}
		return ""
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return phpFloat(t, 14, 'E')
	case *OrderedObject, []any, map[string]any, map[string]string, []string:
		s, _ := phpJSONEncode(t)
		return s
	default:
		return fmt.Sprint(t)
	}
}

// SignatureVerifier binds a merchant secret.
type SignatureVerifier struct {
	secret string
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: secret}
}

func (v *SignatureVerifier) Sign(payload map[string]any) string { return Sign(payload, v.secret) }

func (v *SignatureVerifier) Verify(payload map[string]any) bool { return Verify(payload, v.secret) }

func (v *SignatureVerifier) VerifyObject(payload *OrderedObject) bool {
	return VerifyObject(payload, v.secret)
}
