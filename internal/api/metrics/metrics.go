// Package metrics defines the custom Prometheus metrics of the photoshoot API.
// It is the single source of truth for metric names, labels, and help strings.
//
// All metrics register with the default Prometheus registry on package init
// through promauto, so they are exposed by the /metrics handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "virtushot"

// ── Generation metrics ────────────────────────────────────────────────────────

// GenerationsTotal counts settled variation passes.
// Labels:
//   - style: the requested style tag (e.g. "vintage")
//   - outcome: "success", "insufficient_credits", "timeout", "upstream_error", …
var GenerationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generations_total",
		Help:      "Total number of variation passes, by style and outcome.",
	},
	[]string{"style", "outcome"},
)

// GatewayDuration measures a single call to the external image model.
// Label:
//   - outcome: same values as the outcome label of GenerationsTotal
var GatewayDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_duration_seconds",
		Help:      "Duration of calls to the external image generation service.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90, 120},
	},
	[]string{"outcome"},
)

// IdempotencyTotal counts idempotency-key checks.
// Label:
//   - result: "hit" (replay, rejected) or "miss" (first submission)
var IdempotencyTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idempotency_checks_total",
		Help:      "Total number of idempotency-key checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// ── Credit metrics ────────────────────────────────────────────────────────────

var CreditsReservedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credits_reserved_total",
		Help:      "Total credits provisionally taken by reservations.",
	},
)

var CreditsCommittedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credits_committed_total",
		Help:      "Total credits spent on delivered images.",
	},
)

var CreditsRefundedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credits_refunded_total",
		Help:      "Total credits returned by rolled back reservations.",
	},
)

// UnbilledGenerationsTotal counts successful generations whose reservation was
// already refunded when the mediator tried to commit it.
var UnbilledGenerationsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unbilled_generations_total",
		Help:      "Total number of delivered images whose reservation was refunded before commit.",
	},
)

// ── Usage metrics ─────────────────────────────────────────────────────────────

// UsageRecordFailuresTotal counts usage records that could not be persisted.
// The charge stands when this happens.
var UsageRecordFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "usage_record_failures_total",
		Help:      "Total number of usage records that failed to persist.",
	},
)

// UsageQueueDepth tracks records waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var UsageQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "usage_queue_depth",
		Help:      "Current number of usage records pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ── Account metrics ───────────────────────────────────────────────────────────

// AccountsCreatedTotal counts new accounts.
// Label:
//   - source: "register", "admin" or "cli"
var AccountsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "accounts_created_total",
		Help:      "Total number of accounts created, by source.",
	},
	[]string{"source"},
)
