// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package admin provides the per-destination management facade: runtime
// statistics, selector-filtered browsing of undelivered messages,
// configuration passthrough, subscription enumeration and diagnostic
// message injection. One View is created per destination and lives as long
// as the destination does.
package admin

import (
	"log/slog"
	"time"

	"github.com/absmach/mqadmin/broker"
	"github.com/absmach/mqadmin/destination"
	"github.com/absmach/mqadmin/record"
	"github.com/absmach/mqadmin/selector"
)

// Compiler compiles a selector string into a reusable predicate. The
// default is the selector package; tests substitute fakes.
type Compiler interface {
	Compile(sel string) (selector.Expression, error)
}

// Converter turns one message into an export record following a declared
// schema. The default is the record package; tests substitute fakes.
type Converter interface {
	Convert(msg *destination.Message) (record.Record, error)
	Schema() *record.Schema
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(sel string) (selector.Expression, error)

func (f CompilerFunc) Compile(sel string) (selector.Expression, error) {
	return f(sel)
}

// View is the management facade over one destination. All operations are
// safe for concurrent callers; each browse builds its own predicate and
// evaluation context.
type View struct {
	dest      destination.Destination
	broker    broker.Broker
	compiler  Compiler
	converter Converter
	logger    *slog.Logger
}

// Option configures a View.
type Option func(*View)

// WithCompiler overrides the selector compiler.
func WithCompiler(c Compiler) Option {
	return func(v *View) { v.compiler = c }
}

// WithConverter overrides the record converter.
func WithConverter(c Converter) Option {
	return func(v *View) { v.converter = c }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *View) { v.logger = logger }
}

// New creates a view over the given destination and its owning broker.
func New(dest destination.Destination, b broker.Broker, opts ...Option) (*View, error) {
	v := &View{
		dest:     dest,
		broker:   b,
		compiler: CompilerFunc(selector.Compile),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.converter == nil {
		conv, err := record.NewConverter()
		if err != nil {
			return nil, err
		}
		v.converter = conv
	}
	return v, nil
}

// Name returns the destination name.
func (v *View) Name() string {
	return v.dest.Name()
}

// GC requests a deferred cleanup pass on the destination.
func (v *View) GC() {
	v.dest.GC()
}

// ResetStatistics zeroes every destination counter.
func (v *View) ResetStatistics() {
	v.dest.Statistics().Reset()
}

// Statistics accessors. The delivery engine owns the counters; these only
// read them.

func (v *View) EnqueueCount() uint64 {
	return v.dest.Statistics().Enqueues()
}

func (v *View) DequeueCount() uint64 {
	return v.dest.Statistics().Dequeues()
}

func (v *View) DispatchCount() uint64 {
	return v.dest.Statistics().Dispatched()
}

func (v *View) InFlightCount() int64 {
	return v.dest.Statistics().Inflight()
}

func (v *View) ConsumerCount() int64 {
	return v.dest.Statistics().Consumers()
}

func (v *View) ProducerCount() int64 {
	return v.dest.Statistics().Producers()
}

func (v *View) QueueSize() int64 {
	return v.dest.Statistics().QueueSize()
}

func (v *View) MessagesCached() int64 {
	return v.dest.Statistics().MessagesCached()
}

func (v *View) AverageEnqueueTime() time.Duration {
	return v.dest.Statistics().ProcessTime().Average()
}

func (v *View) MaxEnqueueTime() time.Duration {
	return v.dest.Statistics().ProcessTime().Max()
}

func (v *View) MinEnqueueTime() time.Duration {
	return v.dest.Statistics().ProcessTime().Min()
}

// Memory accessors.

func (v *View) MemoryPercentUsage() int {
	return v.dest.MemoryUsage().PercentUsage()
}

func (v *View) MemoryLimit() int64 {
	return v.dest.MemoryUsage().Limit()
}

func (v *View) SetMemoryLimit(limit int64) {
	v.dest.MemoryUsage().SetLimit(limit)
}

func (v *View) MemoryUsagePortion() float64 {
	return v.dest.MemoryUsage().UsagePortion()
}

func (v *View) SetMemoryUsagePortion(portion float64) {
	v.dest.MemoryUsage().SetUsagePortion(portion)
}

// Configuration passthrough. Setters take effect immediately on the
// destination; validation is the destination's responsibility.

func (v *View) MaxPageSize() int {
	return v.dest.MaxPageSize()
}

func (v *View) SetMaxPageSize(n int) {
	v.dest.SetMaxPageSize(n)
}

func (v *View) MaxAuditDepth() int {
	return v.dest.MaxAuditDepth()
}

func (v *View) SetMaxAuditDepth(n int) {
	v.dest.SetMaxAuditDepth(n)
}

func (v *View) MaxProducersToAudit() int {
	return v.dest.MaxProducersToAudit()
}

func (v *View) SetMaxProducersToAudit(n int) {
	v.dest.SetMaxProducersToAudit(n)
}

func (v *View) EnableAudit() bool {
	return v.dest.EnableAudit()
}

func (v *View) SetEnableAudit(enable bool) {
	v.dest.SetEnableAudit(enable)
}

func (v *View) ProducerFlowControl() bool {
	return v.dest.ProducerFlowControl()
}

func (v *View) SetProducerFlowControl(enable bool) {
	v.dest.SetProducerFlowControl(enable)
}

func (v *View) UseCache() bool {
	return v.dest.UseCache()
}

func (v *View) SetUseCache(use bool) {
	v.dest.SetUseCache(use)
}
