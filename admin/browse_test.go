// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"errors"
	"fmt"
	"testing"

	"github.com/absmach/mqadmin/broker"
	"github.com/absmach/mqadmin/destination"
	"github.com/absmach/mqadmin/destination/memory"
	"github.com/absmach/mqadmin/record"
	"github.com/absmach/mqadmin/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestView(t *testing.T, dest destination.Destination, opts ...Option) *View {
	t.Helper()
	b := broker.NewLocal("test-broker", "mqadmin://test-broker")
	v, err := New(dest, b, opts...)
	require.NoError(t, err)
	return v
}

func publishN(t *testing.T, dest *memory.Destination, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		msg := destination.NewTextMessage(fmt.Sprintf("msg-%d", i))
		msg.Properties["seq"] = i
		require.NoError(t, dest.Publish(msg))
	}
}

// fakeCompiler records Compile calls and hands out counting predicates.
type fakeCompiler struct {
	err      error
	match    bool
	compiles int
	evals    int
}

func (f *fakeCompiler) Compile(sel string) (selector.Expression, error) {
	f.compiles++
	if f.err != nil {
		return nil, f.err
	}
	return fakePredicate{compiler: f}, nil
}

type fakePredicate struct {
	compiler *fakeCompiler
}

func (p fakePredicate) Matches(*selector.Context) (bool, error) {
	p.compiler.evals++
	return p.compiler.match, nil
}

// fakeConverter fails conversion for configured message payloads.
type fakeConverter struct {
	failOn map[string]bool
	emit   func(msg *destination.Message) record.Record
}

func (f *fakeConverter) Convert(msg *destination.Message) (record.Record, error) {
	if f.failOn[string(msg.Payload)] {
		return nil, errors.New("conversion fault")
	}
	if f.emit != nil {
		return f.emit(msg), nil
	}
	conv, err := record.NewConverter()
	if err != nil {
		return nil, err
	}
	return conv.Convert(msg)
}

func (f *fakeConverter) Schema() *record.Schema {
	return record.MessageSchema()
}

func TestBrowse_NoSelectorReturnsAllInOrder(t *testing.T) {
	dest := memory.New("orders")
	publishN(t, dest, 4)
	v := newTestView(t, dest)

	records, err := v.Browse("")
	require.NoError(t, err)
	require.Len(t, records, 4)
	for i, rec := range records {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), rec["body"])
	}
}

func TestBrowse_EmptyDestination(t *testing.T) {
	v := newTestView(t, memory.New("orders"))

	records, err := v.Browse("")
	require.NoError(t, err)
	assert.Empty(t, records)

	table, err := v.BrowseTable("")
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestBrowse_SelectorFiltersByPriority(t *testing.T) {
	dest := memory.New("orders")
	for _, p := range []int{1, 5, 9} {
		msg := destination.NewTextMessage(fmt.Sprintf("prio-%d", p))
		msg.Priority = p
		require.NoError(t, dest.Publish(msg))
	}
	v := newTestView(t, dest)

	records, err := v.Browse("JMSPriority > 4")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "prio-5", records[0]["body"])
	assert.Equal(t, "prio-9", records[1]["body"])
}

func TestBrowse_SelectorOverProperties(t *testing.T) {
	dest := memory.New("orders")
	publishN(t, dest, 5)
	v := newTestView(t, dest)

	records, err := v.Browse("seq >= 3")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "msg-3", records[0]["body"])
	assert.Equal(t, "msg-4", records[1]["body"])
}

func TestBrowse_MalformedSelectorFailsBeforeEvaluation(t *testing.T) {
	dest := memory.New("orders")
	publishN(t, dest, 3)

	compiler := &fakeCompiler{err: fmt.Errorf("%w: boom", selector.ErrInvalidSelector)}
	v := newTestView(t, dest, WithCompiler(compiler))

	_, err := v.Browse("not ( valid")
	assert.ErrorIs(t, err, selector.ErrInvalidSelector)
	assert.Equal(t, 1, compiler.compiles)
	assert.Equal(t, 0, compiler.evals, "no message may be evaluated")

	_, err = v.BrowseComposite("not ( valid")
	assert.ErrorIs(t, err, selector.ErrInvalidSelector)
	_, err = v.BrowseTable("not ( valid")
	assert.ErrorIs(t, err, selector.ErrInvalidSelector)
	assert.Equal(t, 0, compiler.evals)
}

func TestBrowse_CompilesSelectorOnce(t *testing.T) {
	dest := memory.New("orders")
	publishN(t, dest, 5)

	compiler := &fakeCompiler{match: true}
	v := newTestView(t, dest, WithCompiler(compiler))

	records, err := v.Browse("anything")
	require.NoError(t, err)
	assert.Len(t, records, 5)
	assert.Equal(t, 1, compiler.compiles)
	assert.Equal(t, 5, compiler.evals)
}

func TestBrowse_EvaluationFailureSkipsSingleMessage(t *testing.T) {
	dest := memory.New("orders")
	for i, level := range []any{1, struct{ x int }{1}, 2} {
		msg := destination.NewTextMessage(fmt.Sprintf("msg-%d", i+1))
		msg.Properties["level"] = level
		require.NoError(t, dest.Publish(msg))
	}
	v := newTestView(t, dest)

	// Message 2's property cannot be evaluated; 1 and 3 still match.
	records, err := v.Browse("level > 0")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "msg-1", records[0]["body"])
	assert.Equal(t, "msg-3", records[1]["body"])
}

func TestBrowse_ConversionFailureSkipsSingleMessage(t *testing.T) {
	dest := memory.New("orders")
	publishN(t, dest, 3)

	conv := &fakeConverter{failOn: map[string]bool{"msg-1": true}}
	v := newTestView(t, dest, WithConverter(conv))

	records, err := v.Browse("")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "msg-0", records[0]["body"])
	assert.Equal(t, "msg-2", records[1]["body"])

	table, err := v.BrowseTable("")
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
}

func TestBrowseComposite_CarriesSchema(t *testing.T) {
	dest := memory.New("orders")
	publishN(t, dest, 2)
	v := newTestView(t, dest)

	composite, err := v.BrowseComposite("")
	require.NoError(t, err)
	require.NotNil(t, composite.Schema)
	assert.Equal(t, record.MessageSchemaName, composite.Schema.Name)
	assert.Len(t, composite.Records, 2)
}

func TestBrowseTable_KeyedByMessageID(t *testing.T) {
	dest := memory.New("orders")
	publishN(t, dest, 3)
	v := newTestView(t, dest)

	table, err := v.BrowseTable("")
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	for _, key := range table.Keys() {
		rec, ok := table.Get(key)
		require.True(t, ok)
		assert.Equal(t, key, rec["messageID"])
	}
}

func TestBrowseTable_DuplicateIdentifiersFail(t *testing.T) {
	dest := memory.New("orders")
	dest.SetEnableAudit(false)

	msg := destination.NewTextMessage("dup")
	require.NoError(t, dest.Publish(msg))
	require.NoError(t, dest.Publish(msg))
	v := newTestView(t, dest)

	_, err := v.BrowseTable("")
	assert.ErrorIs(t, err, record.ErrDuplicateKey)

	// The list shapes tolerate the same snapshot.
	records, err := v.Browse("")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestBrowseTable_SchemaMismatchFails(t *testing.T) {
	dest := memory.New("orders")
	publishN(t, dest, 1)

	conv := &fakeConverter{emit: func(msg *destination.Message) record.Record {
		return record.Record{"messageID": msg.ID} // missing every other field
	}}
	v := newTestView(t, dest, WithConverter(conv))

	_, err := v.BrowseTable("")
	assert.ErrorIs(t, err, record.ErrSchemaMismatch)
}

func TestBrowse_SnapshotUnaffectedByConcurrentEnqueue(t *testing.T) {
	dest := memory.New("orders")
	publishN(t, dest, 2)
	v := newTestView(t, dest)

	records, err := v.Browse("")
	require.NoError(t, err)

	require.NoError(t, dest.Publish(destination.NewTextMessage("late")))
	assert.Len(t, records, 2)
}
