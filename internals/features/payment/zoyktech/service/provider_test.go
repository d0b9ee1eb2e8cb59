package service

import (
	"testing"

	"coursepay_backend/internals/features/payment/zoyktech/model"
)

func TestCleanAndValidatePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		clean string
		valid bool
	}{
		{"+260971234567", "+260971234567", true},
		{"0971234567", "+260971234567", true},
		{"260761234567", "+260761234567", true},
		{" +260 97-123 4567 ", "+260971234567", true},
		{"+26097123456", "+26097123456", false},
		{"+254712345678", "+254712345678", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := CleanPhone(tt.in); got != tt.clean {
			t.Errorf("CleanPhone(%q) = %q, want %q", tt.in, got, tt.clean)
		}
		if got := ValidatePhone(tt.in); got != tt.valid {
			t.Errorf("ValidatePhone(%q) = %v, want %v", tt.in, got, tt.valid)
		}
	}
}

func TestDetectProvider(t *testing.T) {
	t.Parallel()

	tests := map[string]int{
		"+260951234567": model.ProviderAirtelMoney,
		"+260961234567": model.ProviderAirtelMoney,
		"0971234567":    model.ProviderAirtelMoney,
		"+260761234567": model.ProviderMTNMoney,
		"0771234567":    model.ProviderMTNMoney,
		"+260211234567": model.ProviderAirtelMoney,
	}
	for phone, want := range tests {
		if got := DetectProvider(phone); got != want {
			t.Errorf("DetectProvider(%q) = %d, want %d", phone, got, want)
		}
	}
	if DetectCountry("+260971234567") != "ZM" {
		t.Error("country is not ZM")
	}
}

func TestIsSupportedProvider(t *testing.T) {
	t.Parallel()

	for _, id := range []int{model.ProviderAirtelMoney, model.ProviderMTNMoney, model.ProviderSimulator} {
		if !IsSupportedProvider(id) {
			t.Errorf("provider %d should be supported", id)
		}
	}
	if IsSupportedProvider(0) || IsSupportedProvider(1) {
		t.Error("unknown provider accepted")
	}
}
