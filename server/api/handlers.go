// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/absmach/mqadmin/admin"
	"github.com/absmach/mqadmin/broker"
	"github.com/absmach/mqadmin/destination"
	"github.com/absmach/mqadmin/record"
	"github.com/absmach/mqadmin/selector"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("admin_response_encode_failed", slog.String("error", err.Error()))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if s.metrics != nil && status >= http.StatusInternalServerError {
		s.metrics.RecordError("internal")
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// view resolves the destination from the route, answering 404 itself when
// the name is unknown.
func (s *Server) view(w http.ResponseWriter, r *http.Request) (*admin.View, bool) {
	name := r.PathValue("name")
	v, err := s.directory.View(name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return v, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type destinationsResponse struct {
	Destinations []string `json:"destinations"`
}

func (s *Server) handleListDestinations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, destinationsResponse{Destinations: s.directory.Names()})
}

type statsResponse struct {
	Destination          string  `json:"destination"`
	EnqueueCount         uint64  `json:"enqueue_count"`
	DequeueCount         uint64  `json:"dequeue_count"`
	DispatchCount        uint64  `json:"dispatch_count"`
	InFlightCount        int64   `json:"in_flight_count"`
	ConsumerCount        int64   `json:"consumer_count"`
	ProducerCount        int64   `json:"producer_count"`
	QueueSize            int64   `json:"queue_size"`
	MessagesCached       int64   `json:"messages_cached"`
	AverageEnqueueTimeMs float64 `json:"average_enqueue_time_ms"`
	MaxEnqueueTimeMs     float64 `json:"max_enqueue_time_ms"`
	MinEnqueueTimeMs     float64 `json:"min_enqueue_time_ms"`
	MemoryPercentUsage   int     `json:"memory_percent_usage"`
	MemoryLimit          int64   `json:"memory_limit"`
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Destination:          v.Name(),
		EnqueueCount:         v.EnqueueCount(),
		DequeueCount:         v.DequeueCount(),
		DispatchCount:        v.DispatchCount(),
		InFlightCount:        v.InFlightCount(),
		ConsumerCount:        v.ConsumerCount(),
		ProducerCount:        v.ProducerCount(),
		QueueSize:            v.QueueSize(),
		MessagesCached:       v.MessagesCached(),
		AverageEnqueueTimeMs: millis(v.AverageEnqueueTime()),
		MaxEnqueueTimeMs:     millis(v.MaxEnqueueTime()),
		MinEnqueueTimeMs:     millis(v.MinEnqueueTime()),
		MemoryPercentUsage:   v.MemoryPercentUsage(),
		MemoryLimit:          v.MemoryLimit(),
	})
}

func (s *Server) handleResetStats(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}

	v.ResetStatistics()
	s.logger.Info("destination_statistics_reset", slog.String("destination", v.Name()))
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type fieldJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type schemaJSON struct {
	Name   string      `json:"name"`
	Key    string      `json:"key"`
	Fields []fieldJSON `json:"fields"`
}

func toSchemaJSON(sch *record.Schema) schemaJSON {
	out := schemaJSON{Name: sch.Name, Key: sch.Key}
	for _, f := range sch.Fields {
		out.Fields = append(out.Fields, fieldJSON{Name: f.Name, Type: f.Type.String()})
	}
	return out
}

type browseListResponse struct {
	Destination string          `json:"destination"`
	Count       int             `json:"count"`
	Records     []record.Record `json:"records"`
}

type browseCompositeResponse struct {
	Destination string          `json:"destination"`
	Schema      schemaJSON      `json:"schema"`
	Records     []record.Record `json:"records"`
}

type browseTableResponse struct {
	Destination string                   `json:"destination"`
	Schema      schemaJSON               `json:"schema"`
	Keys        []string                 `json:"keys"`
	Rows        map[string]record.Record `json:"rows"`
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}

	if !s.limits.AllowBrowse(v.Name()) {
		if s.metrics != nil {
			s.metrics.RecordRateLimited("browse")
		}
		s.writeError(w, http.StatusTooManyRequests, errors.New("browse rate limit exceeded"))
		return
	}

	sel := r.URL.Query().Get("selector")
	shape := r.URL.Query().Get("shape")
	if shape == "" {
		shape = "list"
	}

	start := time.Now()
	var (
		resp  any
		count int
		err   error
	)
	switch shape {
	case "list":
		var recs []record.Record
		if recs, err = v.Browse(sel); err == nil {
			count = len(recs)
			resp = browseListResponse{Destination: v.Name(), Count: count, Records: recs}
		}
	case "composite":
		var comp *record.Composite
		if comp, err = v.BrowseComposite(sel); err == nil {
			count = len(comp.Records)
			resp = browseCompositeResponse{
				Destination: v.Name(),
				Schema:      toSchemaJSON(comp.Schema),
				Records:     comp.Records,
			}
		}
	case "table":
		var tbl *record.Table
		if tbl, err = v.BrowseTable(sel); err == nil {
			count = tbl.Len()
			rows := make(map[string]record.Record, count)
			for _, k := range tbl.Keys() {
				rows[k], _ = tbl.Get(k)
			}
			resp = browseTableResponse{
				Destination: v.Name(),
				Schema:      toSchemaJSON(tbl.Schema()),
				Keys:        tbl.Keys(),
				Rows:        rows,
			}
		}
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("shape must be one of: list, composite, table"))
		return
	}
	if err != nil {
		s.writeError(w, browseStatus(err), err)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordBrowse(v.Name(), shape, count, millis(time.Since(start)))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func browseStatus(err error) int {
	switch {
	case errors.Is(err, selector.ErrInvalidSelector):
		return http.StatusBadRequest
	case errors.Is(err, record.ErrDuplicateKey), errors.Is(err, record.ErrSchemaMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type sendRequest struct {
	Body         string         `json:"body"`
	Headers      map[string]any `json:"headers,omitempty"`
	User         string         `json:"user,omitempty"`
	Password     string         `json:"password,omitempty"`
	DeliveryMode *string        `json:"delivery_mode,omitempty"`
	Priority     *int           `json:"priority,omitempty"`
	TTLMs        *int64         `json:"ttl_ms,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}

	if !s.limits.AllowSend(v.Name()) {
		if s.metrics != nil {
			s.metrics.RecordRateLimited("send")
		}
		s.writeError(w, http.StatusTooManyRequests, errors.New("send rate limit exceeded"))
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if req.Body == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("body is required"))
		return
	}

	opts := []admin.PublishOption{}
	if len(req.Headers) > 0 {
		opts = append(opts, admin.WithHeaders(req.Headers))
	}
	if req.User != "" || req.Password != "" {
		opts = append(opts, admin.WithCredentials(req.User, req.Password))
	}
	if req.DeliveryMode != nil {
		mode, err := parseDeliveryMode(*req.DeliveryMode)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		opts = append(opts, admin.WithDeliveryMode(mode))
	}
	if req.Priority != nil {
		if *req.Priority < 0 || *req.Priority > 9 {
			s.writeError(w, http.StatusBadRequest, errors.New("priority must be between 0 and 9"))
			return
		}
		opts = append(opts, admin.WithPriority(*req.Priority))
	}
	if req.TTLMs != nil {
		if *req.TTLMs < 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("ttl_ms cannot be negative"))
			return
		}
		opts = append(opts, admin.WithTTL(time.Duration(*req.TTLMs)*time.Millisecond))
	}

	start := time.Now()
	id, err := v.SendTextMessage(req.Body, opts...)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, broker.ErrNotAuthorized) {
			status = http.StatusUnauthorized
		}
		s.writeError(w, status, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordSend(v.Name(), millis(time.Since(start)))
	}
	s.writeJSON(w, http.StatusOK, sendResponse{MessageID: id})
}

func parseDeliveryMode(mode string) (destination.DeliveryMode, error) {
	switch mode {
	case "PERSISTENT":
		return destination.Persistent, nil
	case "NON_PERSISTENT":
		return destination.NonPersistent, nil
	default:
		return 0, fmt.Errorf("delivery_mode must be PERSISTENT or NON_PERSISTENT")
	}
}

type configResponse struct {
	Destination         string  `json:"destination"`
	MaxPageSize         int     `json:"max_page_size"`
	MaxAuditDepth       int     `json:"max_audit_depth"`
	MaxProducersToAudit int     `json:"max_producers_to_audit"`
	EnableAudit         bool    `json:"enable_audit"`
	ProducerFlowControl bool    `json:"producer_flow_control"`
	UseCache            bool    `json:"use_cache"`
	MemoryLimit         int64   `json:"memory_limit"`
	MemoryUsagePortion  float64 `json:"memory_usage_portion"`
}

// configUpdate carries a partial configuration change; absent fields keep
// their current value.
type configUpdate struct {
	MaxPageSize         *int     `json:"max_page_size,omitempty"`
	MaxAuditDepth       *int     `json:"max_audit_depth,omitempty"`
	MaxProducersToAudit *int     `json:"max_producers_to_audit,omitempty"`
	EnableAudit         *bool    `json:"enable_audit,omitempty"`
	ProducerFlowControl *bool    `json:"producer_flow_control,omitempty"`
	UseCache            *bool    `json:"use_cache,omitempty"`
	MemoryLimit         *int64   `json:"memory_limit,omitempty"`
	MemoryUsagePortion  *float64 `json:"memory_usage_portion,omitempty"`
}

func (s *Server) configOf(v *admin.View) configResponse {
	return configResponse{
		Destination:         v.Name(),
		MaxPageSize:         v.MaxPageSize(),
		MaxAuditDepth:       v.MaxAuditDepth(),
		MaxProducersToAudit: v.MaxProducersToAudit(),
		EnableAudit:         v.EnableAudit(),
		ProducerFlowControl: v.ProducerFlowControl(),
		UseCache:            v.UseCache(),
		MemoryLimit:         v.MemoryLimit(),
		MemoryUsagePortion:  v.MemoryUsagePortion(),
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.configOf(v))
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}

	var upd configUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	if upd.MaxPageSize != nil {
		if *upd.MaxPageSize < 1 {
			s.writeError(w, http.StatusBadRequest, errors.New("max_page_size must be at least 1"))
			return
		}
		v.SetMaxPageSize(*upd.MaxPageSize)
	}
	if upd.MaxAuditDepth != nil {
		v.SetMaxAuditDepth(*upd.MaxAuditDepth)
	}
	if upd.MaxProducersToAudit != nil {
		v.SetMaxProducersToAudit(*upd.MaxProducersToAudit)
	}
	if upd.EnableAudit != nil {
		v.SetEnableAudit(*upd.EnableAudit)
	}
	if upd.ProducerFlowControl != nil {
		v.SetProducerFlowControl(*upd.ProducerFlowControl)
	}
	if upd.UseCache != nil {
		v.SetUseCache(*upd.UseCache)
	}
	if upd.MemoryLimit != nil {
		if *upd.MemoryLimit < 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("memory_limit cannot be negative"))
			return
		}
		v.SetMemoryLimit(*upd.MemoryLimit)
	}
	if upd.MemoryUsagePortion != nil {
		v.SetMemoryUsagePortion(*upd.MemoryUsagePortion)
	}

	s.logger.Info("destination_config_updated", slog.String("destination", v.Name()))
	s.writeJSON(w, http.StatusOK, s.configOf(v))
}

type subscriptionsResponse struct {
	Destination   string   `json:"destination"`
	Subscriptions []string `json:"subscriptions"`
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}

	subs, err := v.Subscriptions()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, subscriptionsResponse{Destination: v.Name(), Subscriptions: subs})
}

func (s *Server) handleGC(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}

	v.GC()
	if s.metrics != nil {
		s.metrics.RecordGCRun(v.Name())
	}
	s.logger.Info("destination_gc_triggered", slog.String("destination", v.Name()))
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
