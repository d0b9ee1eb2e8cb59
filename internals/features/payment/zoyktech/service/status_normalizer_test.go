package service

import (
	"encoding/json"
	"testing"

	"coursepay_backend/internals/features/payment/zoyktech/model"
)

func TestStatusNormalizer_Normalize(t *testing.T) {
	t.Parallel()

	n := NewStatusNormalizer(true)

	tests := []struct {
		name    string
		payload map[string]any
		want    model.TransactionStatus
	}{
		{name: "status 1", payload: map[string]any{"status": 1}, want: model.TransactionStatusCompleted},
		{name: "status 2", payload: map[string]any{"status": 2}, want: model.TransactionStatusCompleted},
		{name: "status 3", payload: map[string]any{"status": 3}, want: model.TransactionStatusFailed},
		{name: "status 4", payload: map[string]any{"status": 4}, want: model.TransactionStatusCancelled},
		{name: "status 5", payload: map[string]any{"status": 5}, want: model.TransactionStatusExpired},
		{name: "status 0", payload: map[string]any{"status": 0}, want: model.TransactionStatusProcessing},
		{name: "status 99", payload: map[string]any{"status": 99}, want: model.TransactionStatusProcessing},
		{name: "status as form string", payload: map[string]any{"status": "3"}, want: model.TransactionStatusFailed},
		{name: "status as json number", payload: map[string]any{"status": json.Number("2")}, want: model.TransactionStatusCompleted},
		{name: "status as float64", payload: map[string]any{"status": float64(4)}, want: model.TransactionStatusCancelled},
		{name: "status beats result", payload: map[string]any{"status": 3, "result": map[string]any{"code": 0}}, want: model.TransactionStatusFailed},
		{name: "result code 0", payload: map[string]any{"result": map[string]any{"code": 0}}, want: model.TransactionStatusCompleted},
		{name: "result code 7", payload: map[string]any{"result": map[string]any{"code": 7}}, want: model.TransactionStatusFailed},
		{name: "result code form key", payload: map[string]any{"result[code]": "0"}, want: model.TransactionStatusCompleted},
		{name: "result beats success", payload: map[string]any{"result": map[string]any{"code": 1}, "success": true}, want: model.TransactionStatusFailed},
		{name: "success true", payload: map[string]any{"success": true}, want: model.TransactionStatusCompleted},
		{name: "success false", payload: map[string]any{"success": false}, want: model.TransactionStatusFailed},
		{name: "success as string", payload: map[string]any{"success": "true"}, want: model.TransactionStatusCompleted},
		{name: "non numeric status falls through", payload: map[string]any{"status": "done", "success": false}, want: model.TransactionStatusFailed},
		{name: "result without code", payload: map[string]any{"result": map[string]any{"msg": "x"}}, want: model.TransactionStatusProcessing},
		{name: "nothing", payload: map[string]any{"order_id": "PO1"}, want: model.TransactionStatusProcessing},
		{name: "empty", payload: map[string]any{}, want: model.TransactionStatusProcessing},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := n.Normalize(tt.payload); got != tt.want {
				t.Errorf("Normalize(%v) = %q, want %q", tt.payload, got, tt.want)
			}
		})
	}
}

func TestStatusNormalizer_StatusOneStrict(t *testing.T) {
	t.Parallel()

	n := NewStatusNormalizer(false)
	if got := n.Normalize(map[string]any{"status": 1}); got != model.TransactionStatusProcessing {
		t.Errorf("status 1 strict = %q, want processing", got)
	}
	if got := n.Normalize(map[string]any{"status": 2}); got != model.TransactionStatusCompleted {
		t.Errorf("status 2 strict = %q, want completed", got)
	}
}

func TestParseStatusSignal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload map[string]any
		want    StatusSignal
	}{
		{name: "int status", payload: map[string]any{"status": "5"}, want: StatusSignal{Kind: SignalIntStatus, Int: 5}},
		{name: "fractional status ignored", payload: map[string]any{"status": 2.5}, want: StatusSignal{Kind: SignalUnknown}},
		{name: "result code dotted", payload: map[string]any{"result.code": 3}, want: StatusSignal{Kind: SignalNestedResultCode, Int: 3}},
		{name: "success", payload: map[string]any{"success": "0"}, want: StatusSignal{Kind: SignalBooleanSuccess, Bool: false}},
		{name: "garbage success", payload: map[string]any{"success": "maybe"}, want: StatusSignal{Kind: SignalUnknown}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseStatusSignal(tt.payload); got != tt.want {
				t.Errorf("ParseStatusSignal() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
