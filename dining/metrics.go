// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package dining

import (
	"github.com/prometheus/client_golang/prometheus"
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())

	InitMetrics(registry)
}

var (
	mealsServedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dinesim",
			Subsystem: "table",
			Name:      "meals_served_total",
			Help:      "Total number of meals granted to a seat.",
		}, []string{"seat"})
	queueLengthGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dinesim",
			Subsystem: "table",
			Name:      "queue_length",
			Help:      "The number of hungry seats waiting in the fairness queue.",
		})
	eatingSeatsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dinesim",
			Subsystem: "table",
			Name:      "eating_seats",
			Help:      "The number of seats currently eating.",
		})
	waitDurationHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dinesim",
			Subsystem: "table",
			Name:      "wait_duration_seconds",
			Help:      "Time a seat spent between requesting forks and the grant.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		})
)

// InitMetrics registers all metrics in this file.
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(mealsServedCounter)
	registry.MustRegister(queueLengthGauge)
	registry.MustRegister(eatingSeatsGauge)
	registry.MustRegister(waitDurationHistogram)
}
