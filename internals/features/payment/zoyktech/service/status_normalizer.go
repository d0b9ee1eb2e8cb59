package service

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"coursepay_backend/internals/features/payment/zoyktech/model"
)

type SignalKind int

const (
	SignalUnknown SignalKind = iota
	SignalIntStatus
	SignalNestedResultCode
	SignalBooleanSuccess
)

func (k SignalKind) String() string {
	switch k {
	case SignalIntStatus:
		return "int_status"
	case SignalNestedResultCode:
		return "result_code"
	case SignalBooleanSuccess:
		return "success_flag"
	default:
		return "unknown"
	}
}

// StatusSignal is the one status indicator picked out of a callback.
// Int is set for SignalIntStatus and SignalNestedResultCode, Bool for SignalBooleanSuccess.
type StatusSignal struct {
	Kind SignalKind
	Int  int64
	Bool bool
}

// ParseStatusSignal picks the first recognizable indicator, in order:
// integer "status", then "result.code", then boolean "success".
func ParseStatusSignal(payload map[string]any) StatusSignal {
	if v, ok := payload["status"]; ok {
		if n, ok := asInt(v); ok {
			return StatusSignal{Kind: SignalIntStatus, Int: n}
		}
	}
	if v, ok := resultCode(payload); ok {
		if n, ok := asInt(v); ok {
			return StatusSignal{Kind: SignalNestedResultCode, Int: n}
		}
	}
	if v, ok := payload["success"]; ok {
		if b, ok := asBool(v); ok {
			return StatusSignal{Kind: SignalBooleanSuccess, Bool: b}
		}
	}
	return StatusSignal{Kind: SignalUnknown}
}

// resultCode finds result.code in a nested object or in the flattened
// keys form encoding produces ("result[code]", "result.code").
func resultCode(payload map[string]any) (any, bool) {
	if r, ok := payload["result"]; ok {
		switch m := r.(type) {
		case map[string]any:
			if c, ok := m["code"]; ok {
				return c, true
			}
		case map[string]string:
			if c, ok := m["code"]; ok {
				return c, true
			}
		}
	}
	if c, ok := payload["result[code]"]; ok {
		return c, true
	}
	if c, ok := payload["result.code"]; ok {
		return c, true
	}
	return nil, false
}

type StatusNormalizer struct {
	// StatusOneCompletes maps status=1 to completed instead of processing.
	StatusOneCompletes bool
}

func NewStatusNormalizer(statusOneCompletes bool) StatusNormalizer {
	return StatusNormalizer{StatusOneCompletes: statusOneCompletes}
}

func (n StatusNormalizer) Normalize(payload map[string]any) model.TransactionStatus {
	return n.FromSignal(ParseStatusSignal(payload))
}

func (n StatusNormalizer) FromSignal(sig StatusSignal) model.TransactionStatus {
	switch sig.Kind {
	case SignalIntStatus:
		switch sig.Int {
		case 1:
			if n.StatusOneCompletes {
				return model.TransactionStatusCompleted
			}
			return model.TransactionStatusProcessing
		case 2:
			return model.TransactionStatusCompleted
		case 3:
			return model.TransactionStatusFailed
		case 4:
			return model.TransactionStatusCancelled
		case 5:
			return model.TransactionStatusExpired
		default:
			return model.TransactionStatusProcessing
		}
	case SignalNestedResultCode:
		if sig.Int == 0 {
			return model.TransactionStatusCompleted
		}
		return model.TransactionStatusFailed
	case SignalBooleanSuccess:
		if sig.Bool {
			return model.TransactionStatusCompleted
		}
		return model.TransactionStatusFailed
	default:
		return model.TransactionStatusProcessing
	}
}

func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		return 0, false
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}
