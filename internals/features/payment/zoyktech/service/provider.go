package service

import (
	"regexp"
	"strings"

	"coursepay_backend/internals/features/payment/zoyktech/model"
)

const (
	CountryZambia     = "ZM"
	ZambiaDialingCode = "+260"
)

var (
	zambianPhoneRe = regexp.MustCompile(`^\+260[0-9]{9}$`)
	phoneJunkRe    = regexp.MustCompile(`[^0-9+]`)
)

// CleanPhone strips everything but digits and '+', and rewrites local
// forms (0971234567, 260971234567) to +260971234567.
func CleanPhone(phone string) string {
	p := phoneJunkRe.ReplaceAllString(strings.TrimSpace(phone), "")
	switch {
	case strings.HasPrefix(p, "+"):
		return p
	case strings.HasPrefix(p, "260") && len(p) == 12:
		return "+" + p
	case strings.HasPrefix(p, "0") && len(p) == 10:
		return ZambiaDialingCode + p[1:]
	default:
		return p
	}
}

func ValidatePhone(phone string) bool {
	return zambianPhoneRe.MatchString(CleanPhone(phone))
}

// DetectProvider maps a Zambian number to its mobile-money network:
// 095/096/097 Airtel, 076/077 MTN. Unknown prefixes default to Airtel.
func DetectProvider(phone string) int {
	p := CleanPhone(phone)
	switch {
	case hasAnyPrefix(p, "+26095", "+26096", "+26097"):
		return model.ProviderAirtelMoney
	case hasAnyPrefix(p, "+26076", "+26077"):
		return model.ProviderMTNMoney
	default:
		return model.ProviderAirtelMoney
	}
}

// DetectCountry: collections are Zambia-only for now.
func DetectCountry(string) string {
	return CountryZambia
}

func IsSupportedProvider(id int) bool {
	switch id {
	case model.ProviderAirtelMoney, model.ProviderMTNMoney, model.ProviderSimulator:
		return true
	}
	return false
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
