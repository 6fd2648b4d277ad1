//go:build !noprom

package metrics

import (
	"net/http"
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

type promRecorder struct {
	dbTotal     *prom.CounterVec
	dbSeconds   *prom.HistogramVec
	toolTotal   *prom.CounterVec
	toolSeconds *prom.HistogramVec
	poolInUse   prom.Gauge
	poolIdle    prom.Gauge
	stmtCache   *prom.CounterVec
	pairs       *prom.CounterVec
	themes      *prom.HistogramVec
}

func newPromRecorder() *promRecorder {
	return &promRecorder{
		dbTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "db_ops_total",
			Help: "Total number of DB operations",
		}, []string{"op", "success"}),
		dbSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "db_op_seconds",
			Help:    "DB operation duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"op", "success"}),
		toolTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "tool_calls_total",
			Help: "Total number of tool handler calls",
		}, []string{"tool", "success"}),
		toolSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "tool_call_seconds",
			Help:    "Tool handler duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"tool", "success"}),
		poolInUse: prom.NewGauge(prom.GaugeOpts{
			Name: "db_pool_in_use",
			Help: "Open connections currently in use",
		}),
		poolIdle: prom.NewGauge(prom.GaugeOpts{
			Name: "db_pool_idle",
			Help: "Idle connections in the pool",
		}),
		stmtCache: prom.NewCounterVec(prom.CounterOpts{
			Name: "stmt_cache_total",
			Help: "Prepared statement cache lookups",
		}, []string{"kind", "result"}),
		pairs: prom.NewCounterVec(prom.CounterOpts{
			Name: "match_pairs_scored_total",
			Help: "Similarity evaluations performed by the matcher",
		}, []string{"mode"}),
		themes: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "cluster_themes",
			Help:    "Themes produced per clustering run",
			Buckets: prom.ExponentialBuckets(1, 2, 12),
		}, []string{"mode"}),
	}
}

func (p *promRecorder) collectors() []prom.Collector {
	return []prom.Collector{
		p.dbTotal, p.dbSeconds, p.toolTotal, p.toolSeconds,
		p.poolInUse, p.poolIdle, p.stmtCache, p.pairs, p.themes,
	}
}

func (p *promRecorder) IncDBOpTotal(op string, success bool) {
	p.dbTotal.WithLabelValues(op, strconv.FormatBool(success)).Inc()
}

func (p *promRecorder) ObserveDBOpSeconds(op string, success bool, seconds float64) {
	p.dbSeconds.WithLabelValues(op, strconv.FormatBool(success)).Observe(seconds)
}

func (p *promRecorder) IncToolTotal(tool string, success bool) {
	p.toolTotal.WithLabelValues(tool, strconv.FormatBool(success)).Inc()
}

func (p *promRecorder) ObserveToolSeconds(tool string, success bool, seconds float64) {
	p.toolSeconds.WithLabelValues(tool, strconv.FormatBool(success)).Observe(seconds)
}

func (p *promRecorder) ObservePoolStats(inUse, idle int) {
	p.poolInUse.Set(float64(inUse))
	p.poolIdle.Set(float64(idle))
}

func (p *promRecorder) IncStmtCacheHit(kind string) {
	p.stmtCache.WithLabelValues(kind, "hit").Inc()
}

func (p *promRecorder) IncStmtCacheMiss(kind string) {
	p.stmtCache.WithLabelValues(kind, "miss").Inc()
}

func (p *promRecorder) AddPairsScored(mode string, pairs int) {
	p.pairs.WithLabelValues(mode).Add(float64(pairs))
}

func (p *promRecorder) ObserveThemeCount(mode string, themes int) {
	p.themes.WithLabelValues(mode).Observe(float64(themes))
}

func enablePrometheus(addr string) error {
	registry := prom.NewRegistry()
	p := newPromRecorder()
	registry.MustRegister(p.collectors()...)
	SetRecorder(p)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() { _ = http.ListenAndServe(addr, mux) }()
	return nil
}
