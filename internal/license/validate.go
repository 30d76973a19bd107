// Package license fetches content licenses over the signed ADP channel and
// evaluates their validity rules.
package license

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mkb69/aaxconnect/internal/domain"
	"github.com/mkb69/aaxconnect/internal/metrics"
)

// ruleParameterExpires is the parameter type carrying an absolute expiry.
const ruleParameterExpires = "EXPIRES"

// Validate evaluates a license at the given instant. Evaluation order, first
// match wins:
//
//  1. requires_ad_supported_playback == 1 on the content license fails the
//     license before any rule is looked at.
//  2. No rule set anywhere means valid; absence of rules never fails a
//     license.
//  3. Any EXPIRES parameter whose date is strictly before the instant fails
//     the license immediately, in rule-list order.
//  4. Otherwise the license is valid; the earliest parsed expiry is reported.
//  5. A rule set without any parsable EXPIRES parameter is also valid; this
//     leniency mirrors the vendor client's behavior.
func Validate(info *domain.LicenseInfo, at time.Time) domain.ValidationResult {
	result := validate(info, at)
	metrics.RecordLicenseValidation(string(result.Status))
	return result
}

func validate(info *domain.LicenseInfo, at time.Time) domain.ValidationResult {
	if v := gjson.GetBytes(info.ContentLicense, "requires_ad_supported_playback"); v.Type == gjson.Number && v.Num == 1 {
		return domain.ValidationResult{
			Valid:   false,
			Status:  domain.StatusRequiresAdsPlayback,
			Message: "license requires ad-supported playback",
		}
	}

	rules, found := resolveRules(info)
	if !found {
		return domain.ValidationResult{
			Valid:   true,
			Status:  domain.StatusNoRules,
			Message: "license carries no rules",
		}
	}

	var earliest *time.Time
	for _, rule := range rules {
		for _, param := range rule.Parameters {
			if param.Type != ruleParameterExpires {
				continue
			}
			expiry, ok := parseExpireDate(param.ExpireDate)
			if !ok {
				continue
			}
			if at.After(expiry) {
				e := expiry
				return domain.ValidationResult{
					Valid:      false,
					Status:     domain.StatusExpired,
					ExpiryDate: &e,
					Message:    fmt.Sprintf("license expired at %s", expiry.Format(time.RFC3339)),
				}
			}
			if earliest == nil || expiry.Before(*earliest) {
				e := expiry
				earliest = &e
			}
		}
	}

	if earliest != nil {
		return domain.ValidationResult{
			Valid:      true,
			Status:     domain.StatusValid,
			ExpiryDate: earliest,
			Message:    fmt.Sprintf("license valid until %s", earliest.Format(time.RFC3339)),
		}
	}

	return domain.ValidationResult{
		Valid:   true,
		Status:  domain.StatusNoExpiryRule,
		Message: "license rules carry no parsable expiry",
	}
}

// resolveRules locates the license's rule set. Ordered fallback:
//
//  1. the decrypted voucher's rules,
//  2. a rules array directly on the content license,
//  3. content_license.license_response.rules, where license_response may be
//     an object or a JSON-encoded string to re-parse.
//
// The boolean reports whether any rule set was found at all; an empty rule
// set still counts as found.
func resolveRules(info *domain.LicenseInfo) ([]domain.Rule, bool) {
	if info.Voucher != nil && info.Voucher.Rules != nil {
		return info.Voucher.Rules, true
	}

	if v := gjson.GetBytes(info.ContentLicense, "rules"); v.IsArray() {
		return decodeRules(v.Raw)
	}

	lr := gjson.GetBytes(info.ContentLicense, "license_response")
	if lr.IsObject() {
		if v := lr.Get("rules"); v.IsArray() {
			return decodeRules(v.Raw)
		}
	}
	if lr.Type == gjson.String && gjson.Valid(lr.Str) {
		if v := gjson.Get(lr.Str, "rules"); v.IsArray() {
			return decodeRules(v.Raw)
		}
	}

	return nil, false
}

func decodeRules(raw string) ([]domain.Rule, bool) {
	var rules []domain.Rule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, false
	}
	return rules, true
}

// parseExpireDate parses an ISO-8601 expiry, fractional seconds first, then
// the plain variant.
func parseExpireDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
