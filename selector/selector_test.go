// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package selector

import (
	"testing"
	"time"

	"github.com/absmach/mqadmin/destination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage(props map[string]any) *destination.Message {
	msg := destination.NewTextMessage("body")
	msg.ID = "ID:test-1"
	msg.Priority = 5
	msg.Timestamp = time.UnixMilli(1_700_000_000_000)
	if props != nil {
		msg.Properties = props
	}
	return msg
}

func match(t *testing.T, sel string, msg *destination.Message) bool {
	t.Helper()

	expr, err := Compile(sel)
	require.NoError(t, err)

	ctx := NewContext("orders")
	ctx.SetMessage(msg)
	m, err := expr.Matches(ctx)
	require.NoError(t, err)
	return m
}

func TestCompile_Invalid(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"a = ",
		"a ==",
		"(a = 1",
		"a BETWEEN 1",
		"a IN 1",
		"a IN ()",
		"a LIKE 5",
		"a LIKE 'x' ESCAPE 'toolong'",
		"a IS",
		"1 @ 2",
		"'unterminated",
		"AND a = 1",
	}
	for _, sel := range cases {
		_, err := Compile(sel)
		assert.Error(t, err, "selector %q", sel)
		assert.ErrorIs(t, err, ErrInvalidSelector, "selector %q", sel)
	}
}

func TestMatches_Comparisons(t *testing.T) {
	msg := testMessage(map[string]any{
		"count":  int64(10),
		"ratio":  2.5,
		"region": "eu-west",
		"urgent": true,
	})

	cases := []struct {
		selector string
		want     bool
	}{
		{"count = 10", true},
		{"count <> 10", false},
		{"count > 9", true},
		{"count >= 10", true},
		{"count < 10", false},
		{"ratio > 2", true},
		{"ratio = 2.5", true},
		{"region = 'eu-west'", true},
		{"region = 'us-east'", false},
		{"urgent = TRUE", true},
		{"urgent = FALSE", false},
		{"count + 5 = 15", true},
		{"count * 2 > 19", true},
		{"count / 4 = 2.5", true},
		{"-count = -10", true},
		{"count - ratio = 7.5", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, match(t, tc.selector, msg), "selector %q", tc.selector)
	}
}

func TestMatches_BooleanOperators(t *testing.T) {
	msg := testMessage(map[string]any{"a": int64(1), "b": int64(2)})

	cases := []struct {
		selector string
		want     bool
	}{
		{"a = 1 AND b = 2", true},
		{"a = 1 AND b = 3", false},
		{"a = 9 OR b = 2", true},
		{"NOT a = 1", false},
		{"NOT (a = 9)", true},
		{"a = 9 OR (b = 2 AND a = 1)", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, match(t, tc.selector, msg), "selector %q", tc.selector)
	}
}

func TestMatches_BetweenInLikeNull(t *testing.T) {
	msg := testMessage(map[string]any{
		"size":   int64(42),
		"region": "eu-central",
		"note":   "50% off_sale",
	})

	cases := []struct {
		selector string
		want     bool
	}{
		{"size BETWEEN 40 AND 50", true},
		{"size NOT BETWEEN 40 AND 50", false},
		{"size BETWEEN 43 AND 50", false},
		{"region IN ('eu-west', 'eu-central')", true},
		{"region NOT IN ('us-east')", true},
		{"region LIKE 'eu-%'", true},
		{"region LIKE 'eu-_entral'", true},
		{"region NOT LIKE 'us-%'", true},
		{"note LIKE '50!% off!_sale' ESCAPE '!'", true},
		{"note LIKE '50!%x' ESCAPE '!'", false},
		{"missing IS NULL", true},
		{"region IS NOT NULL", true},
		{"missing IS NOT NULL", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, match(t, tc.selector, msg), "selector %q", tc.selector)
	}
}

func TestMatches_Headers(t *testing.T) {
	msg := testMessage(nil)

	cases := []struct {
		selector string
		want     bool
	}{
		{"JMSPriority > 4", true},
		{"JMSPriority = 5", true},
		{"JMSDeliveryMode = 'PERSISTENT'", true},
		{"JMSMessageID LIKE 'ID:%'", true},
		{"JMSDestination = 'orders'", true},
		{"JMSExpiration = 0", true},
		{"JMSTimestamp > 0", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, match(t, tc.selector, msg), "selector %q", tc.selector)
	}
}

func TestMatches_UnknownNeverMatches(t *testing.T) {
	msg := testMessage(map[string]any{"region": "eu"})

	// Absent property comparisons are unknown, not errors.
	for _, sel := range []string{
		"missing = 1",
		"missing > 1",
		"missing LIKE 'x%'",
		"missing IN ('a')",
		"region > 4", // string compared as number
	} {
		assert.False(t, match(t, sel, msg), "selector %q", sel)
	}
}

func TestMatches_EvaluationError(t *testing.T) {
	msg := testMessage(map[string]any{"blob": struct{ x int }{1}})

	expr, err := Compile("blob = 1")
	require.NoError(t, err)

	ctx := NewContext("orders")
	ctx.SetMessage(msg)
	_, err = expr.Matches(ctx)
	assert.Error(t, err)
}

func TestExpression_ReusableAcrossMessages(t *testing.T) {
	expr, err := Compile("n > 2")
	require.NoError(t, err)

	ctx := NewContext("orders")
	var got []bool
	for _, n := range []int64{1, 3, 5} {
		ctx.SetMessage(testMessage(map[string]any{"n": n}))
		m, err := expr.Matches(ctx)
		require.NoError(t, err)
		got = append(got, m)
	}
	assert.Equal(t, []bool{false, true, true}, got)
}

func TestMatches_IntPropertyWidths(t *testing.T) {
	msg := testMessage(map[string]any{
		"i":   int(7),
		"i32": int32(7),
		"u16": uint16(7),
		"f32": float32(7),
	})
	for _, sel := range []string{"i = 7", "i32 = 7", "u16 = 7", "f32 = 7"} {
		assert.True(t, match(t, sel, msg), "selector %q", sel)
	}
}
