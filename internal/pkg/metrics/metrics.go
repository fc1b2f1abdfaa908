// Package metrics defines and registers all custom Prometheus metrics for the
// identity service. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation (promauto) and exposed by the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// ── Authentication ────────────────────────────────────────────────────────────

// AuthAttemptsTotal counts password checks.
// Label:
//   - result: "success", "user_not_found", "wrong_password", "disabled"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of username/password authentication attempts, by outcome.",
	},
	[]string{"result"},
)

// SignupsTotal counts signup outcomes.
// Label:
//   - result: "created", "conflict", "invalid_input"
var SignupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signups_total",
		Help:      "Total number of signup requests, by outcome.",
	},
	[]string{"result"},
)

// PasswordChangesTotal counts change-password outcomes.
// Label:
//   - result: "changed", "changed_credentials_retained", "old_password_rejected",
//     "new_password_rejected"
var PasswordChangesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_changes_total",
		Help:      "Total number of change-password requests, by outcome.",
	},
	[]string{"result"},
)

// ── Credentials ───────────────────────────────────────────────────────────────

// CredentialChecksTotal counts credential validations. Token and session
// failures collapse to 401 at the boundary but stay distinct here.
// Labels:
//   - strategy: "session" or "token"
//   - result: "ok", "missing", "invalid", "expired", "revoked", "not_found", "error"
var CredentialChecksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credential_checks_total",
		Help:      "Total number of session/token validations, by strategy and result.",
	},
	[]string{"strategy", "result"},
)

// CredentialsIssuedTotal counts minted sessions and tokens.
// Label:
//   - strategy: "session" or "token"
var CredentialsIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credentials_issued_total",
		Help:      "Total number of sessions or tokens issued.",
	},
	[]string{"strategy"},
)

// CredentialsInvalidatedTotal counts deleted sessions and revoked tokens.
// Labels:
//   - strategy: "session" or "token"
//   - reason: "logout" or "password_changed"
var CredentialsInvalidatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credentials_invalidated_total",
		Help:      "Total number of sessions deleted or tokens revoked.",
	},
	[]string{"strategy", "reason"},
)

// ── Latency ───────────────────────────────────────────────────────────────────

// PasswordHashDuration measures adaptive hash work.
// Label:
//   - op: "hash" or "verify"
var PasswordHashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "password_hash_duration_seconds",
		Help:      "Duration of password hash and verify operations, including pool wait.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	},
	[]string{"op"},
)

// HashPoolQueueDepth tracks jobs waiting for a hash worker.
var HashPoolQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "hash_pool_queue_depth",
		Help:      "Current number of hash jobs waiting for a worker.",
	},
)

// RevocationLookupDuration measures the revocation check paid by every token
// validation.
// Label:
//   - source: "cache" or "store"
var RevocationLookupDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "revocation_lookup_duration_seconds",
		Help:      "Duration of jti revocation lookups.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"source"},
)

// RevocationsPrunedTotal counts revocation records removed after expiry.
var RevocationsPrunedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "revocations_pruned_total",
		Help:      "Total number of expired revocation records pruned.",
	},
)
