package deploy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	opmetrics "github.com/w3m-protocol/w3m-staking/w3m-service/metrics"
)

type Metricer interface {
	RecordDeployment(contract string, gasUsed uint64)
	RecordReuse(contract string)
	RecordCall(contract, method string)
	RecordScript(name string, d time.Duration, err error)
}

type Metrics struct {
	deployments   opmetrics.EventVec
	reused        *prometheus.CounterVec
	deployGasUsed *prometheus.CounterVec
	calls         opmetrics.EventVec
	scripts       *prometheus.HistogramVec
	scriptErrors  *prometheus.CounterVec
}

func MakeMetrics(ns string, factory opmetrics.Factory) *Metrics {
	return &Metrics{
		deployments: opmetrics.NewEventVec(factory, ns, "", "deployment", "contract deployments", []string{"contract"}),
		reused: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "deployment_reused_total",
			Help:      "Number of deployments skipped because the same code and arguments were already deployed",
		}, []string{"contract"}),
		deployGasUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "deployment_gas_used_total",
			Help:      "Gas used by contract creation transactions",
		}, []string{"contract"}),
		calls: opmetrics.NewEventVec(factory, ns, "", "contract_call", "state changing contract calls", []string{"contract", "method"}),
		scripts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "script_duration_seconds",
			Help:      "Duration of deploy scripts, pauses included",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"script"}),
		scriptErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "script_errors_total",
			Help:      "Number of deploy scripts that failed",
		}, []string{"script"}),
	}
}

func (m *Metrics) RecordDeployment(contract string, gasUsed uint64) {
	m.deployments.Record(contract)
	m.deployGasUsed.WithLabelValues(contract).Add(float64(gasUsed))
}

func (m *Metrics) RecordReuse(contract string) {
	m.reused.WithLabelValues(contract).Inc()
}

func (m *Metrics) RecordCall(contract, method string) {
	m.calls.Record(contract, method)
}

func (m *Metrics) RecordScript(name string, d time.Duration, err error) {
	m.scripts.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		m.scriptErrors.WithLabelValues(name).Inc()
	}
}

type NoopMetrics struct{}

func (*NoopMetrics) RecordDeployment(string, uint64)           {}
func (*NoopMetrics) RecordReuse(string)                        {}
func (*NoopMetrics) RecordCall(string, string)                 {}
func (*NoopMetrics) RecordScript(string, time.Duration, error) {}
