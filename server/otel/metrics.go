// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds OpenTelemetry metric instruments for the destination admin
// service.
type Metrics struct {
	meter metric.Meter

	// Counters
	requestsTotal    metric.Int64Counter
	browsesTotal     metric.Int64Counter
	sendsTotal       metric.Int64Counter
	gcRunsTotal      metric.Int64Counter
	rateLimitedTotal metric.Int64Counter
	errorsTotal      metric.Int64Counter

	// UpDownCounters (Gauges)
	destinationsCurrent metric.Int64UpDownCounter

	// Histograms
	browseRecords  metric.Int64Histogram
	browseDuration metric.Float64Histogram
	sendDuration   metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		meter: otel.Meter("mqadmin"),
	}

	var err error

	// Initialize counters
	m.requestsTotal, err = m.meter.Int64Counter(
		"mqadmin.requests.total",
		metric.WithDescription("Total admin API requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create requestsTotal counter: %w", err)
	}

	m.browsesTotal, err = m.meter.Int64Counter(
		"mqadmin.browses.total",
		metric.WithDescription("Total destination browse operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create browsesTotal counter: %w", err)
	}

	m.sendsTotal, err = m.meter.Int64Counter(
		"mqadmin.sends.total",
		metric.WithDescription("Total diagnostic messages sent"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sendsTotal counter: %w", err)
	}

	m.gcRunsTotal, err = m.meter.Int64Counter(
		"mqadmin.gc.runs.total",
		metric.WithDescription("Total destination GC runs triggered"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcRunsTotal counter: %w", err)
	}

	m.rateLimitedTotal, err = m.meter.Int64Counter(
		"mqadmin.rate.limited.total",
		metric.WithDescription("Total operations rejected by rate limiting"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rateLimitedTotal counter: %w", err)
	}

	m.errorsTotal, err = m.meter.Int64Counter(
		"mqadmin.errors.total",
		metric.WithDescription("Total errors by type"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create errorsTotal counter: %w", err)
	}

	// Initialize up/down counters (gauges)
	m.destinationsCurrent, err = m.meter.Int64UpDownCounter(
		"mqadmin.destinations.current",
		metric.WithDescription("Current number of managed destinations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create destinationsCurrent gauge: %w", err)
	}

	// Initialize histograms
	m.browseRecords, err = m.meter.Int64Histogram(
		"mqadmin.browse.records",
		metric.WithDescription("Records returned per browse"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create browseRecords histogram: %w", err)
	}

	m.browseDuration, err = m.meter.Float64Histogram(
		"mqadmin.browse.duration.ms",
		metric.WithDescription("Browse processing duration in milliseconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create browseDuration histogram: %w", err)
	}

	m.sendDuration, err = m.meter.Float64Histogram(
		"mqadmin.send.duration.ms",
		metric.WithDescription("Diagnostic send duration in milliseconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sendDuration histogram: %w", err)
	}

	return m, nil
}

// RecordRequest records an admin API request.
func (m *Metrics) RecordRequest(method, route string) {
	m.requestsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}

// RecordBrowse records a browse operation and its outcome.
func (m *Metrics) RecordBrowse(destination, shape string, records int, durationMs float64) {
	ctx := context.Background()
	m.browsesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("destination", destination),
		attribute.String("shape", shape),
	))
	m.browseRecords.Record(ctx, int64(records))
	m.browseDuration.Record(ctx, durationMs)
}

// RecordSend records a diagnostic message send.
func (m *Metrics) RecordSend(destination string, durationMs float64) {
	ctx := context.Background()
	m.sendsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("destination", destination),
	))
	m.sendDuration.Record(ctx, durationMs)
}

// RecordGCRun records a triggered GC run.
func (m *Metrics) RecordGCRun(destination string) {
	m.gcRunsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("destination", destination),
	))
}

// RecordRateLimited records an operation rejected by rate limiting.
func (m *Metrics) RecordRateLimited(kind string) {
	m.rateLimitedTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

// RecordError records an error by type.
func (m *Metrics) RecordError(errorType string) {
	m.errorsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("type", errorType),
	))
}

// RecordDestinationAdded records a destination registration.
func (m *Metrics) RecordDestinationAdded() {
	m.destinationsCurrent.Add(context.Background(), 1)
}

// RecordDestinationRemoved records a destination removal.
func (m *Metrics) RecordDestinationRemoved() {
	m.destinationsCurrent.Add(context.Background(), -1)
}
