// Package metrics provides Prometheus metrics for the client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registration metrics
	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aax_registrations_total",
			Help: "Total number of device registration attempts",
		},
		[]string{"status"}, // "success", "rejected", "bad_response", "error"
	)

	deregistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aax_deregistrations_total",
			Help: "Total number of device deregistration attempts",
		},
		[]string{"status"},
	)

	// Token metrics
	tokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aax_token_refreshes_total",
			Help: "Total number of bearer token refresh attempts",
		},
		[]string{"status"},
	)

	// License metrics
	licenseRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aax_license_requests_total",
			Help: "Total number of content license requests",
		},
		[]string{"status"},
	)

	voucherDecryptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aax_voucher_decryptions_total",
			Help: "Total number of voucher decryption attempts",
		},
		[]string{"status"}, // "success", "bad_base64", "cipher_error", "parse_error"
	)

	licenseValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aax_license_validations_total",
			Help: "Total number of license validity evaluations",
		},
		[]string{"status"}, // validation verdict status
	)
)

// RecordRegistration records a device registration attempt.
func RecordRegistration(status string) {
	registrationsTotal.WithLabelValues(status).Inc()
}

// RecordDeregistration records a device deregistration attempt.
func RecordDeregistration(status string) {
	deregistrationsTotal.WithLabelValues(status).Inc()
}

// RecordTokenRefresh records a bearer token refresh attempt.
func RecordTokenRefresh(status string) {
	tokenRefreshesTotal.WithLabelValues(status).Inc()
}

// RecordLicenseRequest records a content license request.
func RecordLicenseRequest(status string) {
	licenseRequestsTotal.WithLabelValues(status).Inc()
}

// RecordVoucherDecryption records a voucher decryption attempt.
func RecordVoucherDecryption(status string) {
	voucherDecryptionsTotal.WithLabelValues(status).Inc()
}

// RecordLicenseValidation records a validity verdict.
func RecordLicenseValidation(status string) {
	licenseValidationsTotal.WithLabelValues(status).Inc()
}

// Handler returns the Prometheus metrics HTTP handler for embedding in a
// host application.
func Handler() http.Handler {
	return promhttp.Handler()
}
