package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

/*
  Zoyktech signs payloads with PHP semantics: form fields go through the
  $_POST array builder, nested arrays are json_encode'd in insertion order
  and scalars are string-cast.
*/

// FormField is one raw key/value pair of a form or query string.
type FormField struct {
	Key   string
	Value string
}

// OrderedObject is a decoded payload that remembers key order.
// Values are string, json.Number, bool, nil, []any or *OrderedObject.
type OrderedObject struct {
	keys []string
	vals map[string]any
}

func NewOrderedObject() *OrderedObject {
	return &OrderedObject{vals: map[string]any{}}
}

// Set keeps the position of an existing key, like a PHP array assignment.
func (o *OrderedObject) Set(key string, v any) {
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

func (o *OrderedObject) Get(key string) (any, bool) {
	v, ok := o.vals[key]
	return v, ok
}

func (o *OrderedObject) Len() int { return len(o.keys) }

func (o *OrderedObject) Keys() []string { return append([]string(nil), o.keys...) }

// MarshalJSON writes o with its keys in order.
func (o *OrderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(o.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Map converts o into plain maps and slices.
func (o *OrderedObject) Map() map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		out[k] = plainValue(o.vals[k])
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case *OrderedObject:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	default:
		return v
	}
}

// isList reports whether PHP would encode o as a JSON array: keys are
// exactly 0..n-1 in order. An empty array is a list too.
func (o *OrderedObject) isList() bool {
	for i, k := range o.keys {
		if k != strconv.Itoa(i) {
			return false
		}
	}
	return true
}

// OrderedFromMap builds an OrderedObject from a Go map. Go maps carry no
// order, so keys are sorted at every level.
func OrderedFromMap(m map[string]any) *OrderedObject {
	o := NewOrderedObject()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.Set(k, orderedValue(m[k]))
	}
	return o
}

func orderedValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return OrderedFromMap(t)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return OrderedFromMap(m)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = orderedValue(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return v
	}
}

/* ===================== form decoding ===================== */

// ParseFormFields builds the array PHP would expose as $_POST for fields:
// "result[code]=0" becomes result => {code: "0"}, "items[]" appends, and
// dots or spaces in top-level names turn into underscores.
func ParseFormFields(fields []FormField) *OrderedObject {
	out := NewOrderedObject()
	for _, f := range fields {
		base, path := splitFormKey(f.Key)
		if base == "" {
			continue
		}
		if len(path) == 0 {
			out.Set(base, f.Value)
			continue
		}

		cur, key := out, base
		for _, seg := range path {
			next, ok := cur.vals[key].(*OrderedObject)
			if !ok {
				next = NewOrderedObject()
				cur.Set(key, next)
			}
			cur = next
			if seg == "" {
				seg = strconv.Itoa(cur.nextIndex())
			}
			key = seg
		}
		cur.Set(key, f.Value)
	}
	return out
}

func (o *OrderedObject) nextIndex() int {
	next := 0
	for _, k := range o.keys {
		if n, err := strconv.Atoi(k); err == nil && n >= next && strconv.Itoa(n) == k {
			next = n + 1
		}
	}
	return next
}

func splitFormKey(key string) (string, []string) {
	key = strings.TrimLeft(key, " ")
	open := strings.IndexByte(key, '[')
	if open < 0 || strings.IndexByte(key[open:], ']') < 0 {
		return phpVarName(key), nil
	}

	base := phpVarName(key[:open])
	var path []string
	rest := key[open:]
	for len(rest) > 0 && rest[0] == '[' {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		path = append(path, rest[1:end])
		rest = rest[end+1:]
	}
	return base, path
}

func phpVarName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '[':
			return '_'
		}
		return r
	}, s)
}

/* ===================== JSON decoding ===================== */

// DecodeJSONObject decodes a JSON object keeping key order and number text.
func DecodeJSONObject(raw []byte) (*OrderedObject, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("payload must be a JSON object")
	}
	return decodeObject(dec)
}

func decodeObject(dec *json.Decoder) (*OrderedObject, error) {
	o := NewOrderedObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		o.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return o, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		return decodeObject(dec)
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", d)
	}
}

/* ===================== PHP json_encode ===================== */

// phpJSONEncode mirrors json_encode with default flags: "/" and non-ASCII
// are escaped, floats use the shortest round-trip form. ok is false where
// PHP would return false (invalid UTF-8, NaN, Inf).
func phpJSONEncode(v any) (string, bool) {
	var b strings.Builder
	if !writePHPJSON(&b, v) {
		return "", false
	}
	return b.String(), true
}

func writePHPJSON(b *strings.Builder, v any) bool {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		return writePHPString(b, t)
	case json.Number:
		s, ok := phpNumberJSON(t)
		if !ok {
			return false
		}
		b.WriteString(s)
	case int:
		b.WriteString(strconv.Itoa(t))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return false
		}
		b.WriteString(phpFloat(t, -1, 'e'))
	case *OrderedObject:
		if t.isList() {
			b.WriteByte('[')
			for i, k := range t.keys {
				if i > 0 {
					b.WriteByte(',')
				}
				if !writePHPJSON(b, t.vals[k]) {
					return false
				}
			}
			b.WriteByte(']')
			return true
		}
		b.WriteByte('{')
		for i, k := range t.keys {
			if i > 0 {
				b.WriteByte(',')
			}
			if !writePHPString(b, k) {
				return false
			}
			b.WriteByte(':')
			if !writePHPJSON(b, t.vals[k]) {
				return false
			}
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			if !writePHPJSON(b, e) {
				return false
			}
		}
		b.WriteByte(']')
	case map[string]any, map[string]string, []string:
		return writePHPJSON(b, orderedValue(t))
	default:
		return writePHPString(b, fmt.Sprint(t))
	}
	return true
}

const hexDigits = "0123456789abcdef"

func writePHPString(b *strings.Builder, s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '/':
			b.WriteString(`\/`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			switch {
			case r < 0x20:
				writeUnicodeEscape(b, r)
			case r < utf8.RuneSelf:
				b.WriteRune(r)
			case r > 0xFFFF:
				hi, lo := utf16.EncodeRune(r)
				writeUnicodeEscape(b, hi)
				writeUnicodeEscape(b, lo)
			default:
				writeUnicodeEscape(b, r)
			}
		}
	}
	b.WriteByte('"')
	return true
}

func writeUnicodeEscape(b *strings.Builder, r rune) {
	b.WriteString(`\u`)
	b.WriteByte(hexDigits[(r>>12)&0xF])
	b.WriteByte(hexDigits[(r>>8)&0xF])
	b.WriteByte(hexDigits[(r>>4)&0xF])
	b.WriteByte(hexDigits[r&0xF])
}

// phpNumberJSON re-encodes a JSON number the way json_decode followed by
// json_encode would: integers stay, everything else becomes a double.
func phpNumberJSON(n json.Number) (string, bool) {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return strconv.FormatInt(i, 10), true
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsInf(f, 0) {
		return "", false
	}
	return phpFloat(f, -1, 'e'), true
}

// phpNumberString is the (string) cast of a decoded JSON number.
func phpNumberString(n json.Number) string {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return n.String()
	}
	return phpFloat(f, 14, 'E')
}

// phpFloat formats f like php_gcvt. precision -1 is serialize_precision
// (shortest round trip, json_encode); 14 is the string cast precision.
func phpFloat(f float64, precision int, expChar byte) string {
	switch {
	case math.IsNaN(f):
		return "NAN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	case f == 0:
		if math.Signbit(f) {
			return "-0"
		}
		return "0"
	}

	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}

	ndigit := 17
	var s string
	if precision < 0 {
		s = strconv.FormatFloat(f, 'e', -1, 64)
	} else {
		ndigit = precision
		s = strconv.FormatFloat(f, 'e', precision-1, 64)
	}
	mant, expPart, _ := strings.Cut(s, "e")
	digits := strings.TrimRight(strings.Replace(mant, ".", "", 1), "0")
	if digits == "" {
		digits = "0"
	}
	exp, _ := strconv.Atoi(expPart)
	decpt := exp + 1

	if decpt < -3 || decpt > ndigit {
		var b strings.Builder
		b.WriteString(sign)
		b.WriteByte(digits[0])
		b.WriteByte('.')
		if len(digits) > 1 {
			b.WriteString(digits[1:])
		} else {
			b.WriteByte('0')
		}
		b.WriteByte(expChar)
		e := decpt - 1
		if e < 0 {
			b.WriteByte('-')
			e = -e
		} else {
			b.WriteByte('+')
		}
		b.WriteString(strconv.Itoa(e))
		return b.String()
	}

	switch {
	case decpt <= 0:
		return sign + "0." + strings.Repeat("0", -decpt) + digits
	case len(digits) <= decpt:
		return sign + digits + strings.Repeat("0", decpt-len(digits))
	default:
		return sign + digits[:decpt] + "." + digits[decpt:]
	}
}
