// Package metrics holds the Prometheus collectors for the dashboard.
//
//   - ape_price_fetch_total{provider,result}   provider calls by outcome (ok|error|open|zero|cancelled)
//   - ape_price_cache_total{result}            cache lookups (hit|miss|manual)
//   - ape_breaker_state{provider}              0 closed, 1 half-open, 2 open
//   - ape_renders_total{trigger}               view renders by cause
//   - ape_portfolio_value_usd                  last rendered portfolio value
//   - ape_store_errors_total{op}               trade store failures
//   - ape_subscription_events_total            live trade notifications received
//   - ape_stream_clients                       connected websocket clients
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "ape"

var (
	PriceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_fetch_total",
			Help:      "Price provider calls by provider and result.",
		},
		[]string{"provider", "result"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_total",
			Help:      "Price cache lookups by result.",
		},
		[]string{"result"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Provider circuit breaker state (0 closed, 1 half-open, 2 open).",
		},
		[]string{"provider"},
	)

	Renders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Dashboard view renders by trigger.",
		},
		[]string{"trigger"},
	)

	PortfolioValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_value_usd",
			Help:      "Portfolio value at the last render.",
		},
	)

	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Trade store failures by operation.",
		},
		[]string{"op"},
	)

	SubscriptionEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_events_total",
			Help:      "Live trade change notifications received.",
		},
	)

	StreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected dashboard stream clients.",
		},
	)
)

// MustRegister registers every collector with the default registry.
func MustRegister() {
	prometheus.MustRegister(
		PriceFetches,
		CacheLookups,
		BreakerState,
		Renders,
		PortfolioValue,
		StoreErrors,
		SubscriptionEvents,
		StreamClients,
	)
}
