// Package metrics exposes optional Prometheus instrumentation for a Node.
// Nothing in spec.md's Non-goals excludes ambient observability (only log
// replication, durability, Byzantine resistance, partitions, auth, and
// late-join catch-up are excluded), so this mirrors the ambient-stack
// treatment logging and configuration get.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the per-node gauges/counters. A nil *Collector is valid
// and every method on it is a no-op, so instrumentation stays entirely
// optional.
type Collector struct {
	role              prometheus.Gauge
	term              prometheus.Gauge
	electionsStarted  prometheus.Counter
	votesGranted      prometheus.Counter
	heartbeatsEmitted prometheus.Counter
}

// New registers a Collector's metrics against reg under the given node id
// label. Returns nil if reg is nil, so callers can do:
//
//	c := metrics.New(reg, id)
//	c.SetRole(int(raft.Follower)) // safe even if c is nil
func New(reg prometheus.Registerer, nodeID string) *Collector {
	if reg == nil {
		return nil
	}

	c := &Collector{
		role: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "browseraft",
			Name:        "role",
			Help:        "Current role of the node (0=Follower, 1=Candidate, 2=Leader).",
			ConstLabels: prometheus.Labels{"node": nodeID},
		}),
		term: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "browseraft",
			Name:        "term",
			Help:        "Current election term observed by the node.",
			ConstLabels: prometheus.Labels{"node": nodeID},
		}),
		electionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "browseraft",
			Name:        "elections_started_total",
			Help:        "Number of times this node started an election.",
			ConstLabels: prometheus.Labels{"node": nodeID},
		}),
		votesGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "browseraft",
			Name:        "votes_granted_total",
			Help:        "Number of votes this node granted to a candidate.",
			ConstLabels: prometheus.Labels{"node": nodeID},
		}),
		heartbeatsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "browseraft",
			Name:        "heartbeats_emitted_total",
			Help:        "Number of heartbeats this node emitted as leader.",
			ConstLabels: prometheus.Labels{"node": nodeID},
		}),
	}

	reg.MustRegister(c.role, c.term, c.electionsStarted, c.votesGranted, c.heartbeatsEmitted)
	return c
}

func (c *Collector) SetRole(role int) {
	if c == nil {
		return
	}
	c.role.Set(float64(role))
}

func (c *Collector) SetTerm(term uint32) {
	if c == nil {
		return
	}
	c.term.Set(float64(term))
}

func (c *Collector) ElectionStarted() {
	if c == nil {
		return
	}
	c.electionsStarted.Inc()
}

func (c *Collector) VoteGranted() {
	if c == nil {
		return
	}
	c.votesGranted.Inc()
}

func (c *Collector) HeartbeatEmitted() {
	if c == nil {
		return
	}
	c.heartbeatsEmitted.Inc()
}
