// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"fmt"
	"log/slog"

	"github.com/absmach/mqadmin/destination"
	"github.com/absmach/mqadmin/record"
	"github.com/absmach/mqadmin/selector"
)

// Browse returns the records of currently undelivered messages matching the
// selector, in snapshot order. An empty selector matches everything. A
// malformed selector fails the whole call before any message is examined;
// a message that cannot be evaluated or converted is logged and skipped,
// never failing its siblings.
func (v *View) Browse(sel string) ([]record.Record, error) {
	matched, err := v.matchedMessages(sel)
	if err != nil {
		return nil, err
	}
	return v.convertAll(matched), nil
}

// BrowseComposite returns the matching records as a flat export batch
// carrying the declared schema.
func (v *View) BrowseComposite(sel string) (*record.Composite, error) {
	matched, err := v.matchedMessages(sel)
	if err != nil {
		return nil, err
	}
	return &record.Composite{
		Schema:  v.converter.Schema(),
		Records: v.convertAll(matched),
	}, nil
}

// BrowseTable returns the matching records keyed by message identifier.
// Unlike the other shapes, a record that disagrees with the declared schema
// or duplicates a key fails the whole call.
func (v *View) BrowseTable(sel string) (*record.Table, error) {
	matched, err := v.matchedMessages(sel)
	if err != nil {
		return nil, err
	}

	table := record.NewTable(v.converter.Schema())
	for _, msg := range matched {
		rec, err := v.converter.Convert(msg)
		if err != nil {
			v.logConversionFailure(msg, err)
			continue
		}
		if err := table.Put(rec); err != nil {
			return nil, fmt.Errorf("assemble table for %s: %w", v.dest.Name(), err)
		}
	}
	return table, nil
}

// matchedMessages implements the shared half of every browse: snapshot the
// destination, compile the selector once, then evaluate it per message with
// one rebound context. Evaluation failures exclude the single message.
func (v *View) matchedMessages(sel string) ([]*destination.Message, error) {
	var expr selector.Expression
	if sel != "" {
		compiled, err := v.compiler.Compile(sel)
		if err != nil {
			return nil, err
		}
		expr = compiled
	}

	snapshot := v.dest.Browse()
	if expr == nil {
		return snapshot, nil
	}

	ctx := selector.NewContext(v.dest.Name())
	matched := make([]*destination.Message, 0, len(snapshot))
	for _, msg := range snapshot {
		ctx.SetMessage(msg)
		ok, err := expr.Matches(ctx)
		if err != nil {
			v.logger.Warn("browse_evaluation_failed",
				slog.String("destination", v.dest.Name()),
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()))
			continue
		}
		if ok {
			matched = append(matched, msg)
		}
	}
	return matched, nil
}

func (v *View) convertAll(msgs []*destination.Message) []record.Record {
	records := make([]record.Record, 0, len(msgs))
	for _, msg := range msgs {
		rec, err := v.converter.Convert(msg)
		if err != nil {
			v.logConversionFailure(msg, err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (v *View) logConversionFailure(msg *destination.Message, err error) {
	v.logger.Warn("browse_conversion_failed",
		slog.String("destination", v.dest.Name()),
		slog.String("message_id", msg.ID),
		slog.String("error", err.Error()))
}
