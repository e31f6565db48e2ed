// Copyright (c) 2019 Perlin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

package evmledger

import (
	"context"
	"time"

	"github.com/perlin-network/evmledger/conf"
	"github.com/perlin-network/evmledger/log"
	"github.com/rcrowley/go-metrics"
)

type Metrics struct {
	registry metrics.Registry

	admittedTX metrics.Meter
	appliedTX  metrics.Meter
	revertedTX metrics.Meter
	rejectedTX metrics.Meter

	deployed       metrics.Meter
	deployFailures metrics.Meter
	pendingTX      metrics.Gauge

	applyLatency metrics.Timer
	gasUsed      metrics.Histogram
}

func NewMetrics(ctx context.Context) *Metrics {
	registry := metrics.NewRegistry()

	m := &Metrics{
		registry: registry,

		admittedTX: metrics.NewRegisteredMeter("tx.admitted", registry),
		appliedTX:  metrics.NewRegisteredMeter("tx.applied", registry),
		revertedTX: metrics.NewRegisteredMeter("tx.reverted", registry),
		rejectedTX: metrics.NewRegisteredMeter("tx.rejected", registry),

		deployed:       metrics.NewRegisteredMeter("contract.deployed", registry),
		deployFailures: metrics.NewRegisteredMeter("contract.failed", registry),
		pendingTX:      metrics.NewRegisteredGauge("tx.pending", registry),

		applyLatency: metrics.NewRegisteredTimer("contract.apply.latency", registry),
		gasUsed:      metrics.NewRegisteredHistogram("contract.gas", registry, metrics.NewExpDecaySample(1028, 0.015)),
	}

	go m.report(ctx, conf.GetMetricsInterval())

	return m
}

func (m *Metrics) report(ctx context.Context, interval time.Duration) {
	logger := log.Metrics()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Info().
				Int64("tx.admitted", m.admittedTX.Count()).
				Int64("tx.applied", m.appliedTX.Count()).
				Int64("tx.reverted", m.revertedTX.Count()).
				Int64("tx.rejected", m.rejectedTX.Count()).
				Int64("tx.pending", m.pendingTX.Value()).
				Int64("contract.deployed", m.deployed.Count()).
				Int64("contract.failed", m.deployFailures.Count()).
				Float64("tps.applied", m.appliedTX.Rate1()).
				Float64("contract.gas.mean", m.gasUsed.Mean()).
				Int64("contract.gas.max", m.gasUsed.Max()).
				Str("contract.apply.latency.max", time.Duration(m.applyLatency.Max()).String()).
				Str("contract.apply.latency.min", time.Duration(m.applyLatency.Min()).String()).
				Str("contract.apply.latency.mean", time.Duration(m.applyLatency.Mean()).String()).
				Msg("Updated metrics.")
		case <-ctx.Done():
			return
		}
	}
}

func (m *Metrics) Stop() {
	m.admittedTX.Stop()
	m.appliedTX.Stop()
	m.revertedTX.Stop()
	m.rejectedTX.Stop()

	m.deployed.Stop()
	m.deployFailures.Stop()

	m.applyLatency.Stop()
}

// Snapshot returns the counters as a flat map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"tx.admitted":       m.admittedTX.Count(),
		"tx.applied":        m.appliedTX.Count(),
		"tx.reverted":       m.revertedTX.Count(),
		"tx.rejected":       m.rejectedTX.Count(),
		"tx.pending":        m.pendingTX.Value(),
		"contract.deployed": m.deployed.Count(),
		"contract.failed":   m.deployFailures.Count(),
	}
}

// The helpers below tolerate a nil *Metrics.

func (m *Metrics) markDeployed(start time.Time, gas uint64) {
	if m == nil {
		return
	}

	m.deployed.Mark(1)
	m.applyLatency.UpdateSince(start)
	m.gasUsed.Update(int64(gas))
}

func (m *Metrics) markDeployFailed() {
	if m == nil {
		return
	}

	m.deployFailures.Mark(1)
}

func (m *Metrics) markAdmitted(pending int) {
	if m == nil {
		return
	}

	m.admittedTX.Mark(1)
	m.pendingTX.Update(int64(pending))
}

func (m *Metrics) markRejected() {
	if m == nil {
		return
	}

	m.rejectedTX.Mark(1)
}

func (m *Metrics) markApplied(n int, pending int) {
	if m == nil {
		return
	}

	m.appliedTX.Mark(int64(n))
	m.pendingTX.Update(int64(pending))
}

func (m *Metrics) markReverted(n int) {
	if m == nil {
		return
	}

	m.revertedTX.Mark(int64(n))
}
