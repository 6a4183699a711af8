// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"errors"
	"testing"
	"time"

	"github.com/absmach/mqadmin/broker"
	"github.com/absmach/mqadmin/destination"
	"github.com/absmach/mqadmin/destination/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	conn       *fakeConn
	connectErr error
}

func (f *fakeBroker) Name() string    { return "fake" }
func (f *fakeBroker) Address() string { return "mqadmin://fake" }

func (f *fakeBroker) Connect(user, password string) (broker.Connection, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return f.conn, nil
}

type fakeConn struct {
	sendErr error
	sent    []*destination.Message
	closes  int
}

func (c *fakeConn) Send(dest string, msg *destination.Message) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.closes++
	return nil
}

func TestSendTextMessage_Roundtrip(t *testing.T) {
	dest := memory.New("orders")
	b := broker.NewLocal("test-broker", "mqadmin://test-broker")
	require.NoError(t, b.AddDestination(dest))

	v, err := New(dest, b)
	require.NoError(t, err)

	id, err := v.SendTextMessage("ping")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	snapshot := dest.Browse()
	require.Len(t, snapshot, 1)
	assert.Equal(t, id, snapshot[0].ID)
	assert.Equal(t, "ping", string(snapshot[0].Payload))
	assert.Equal(t, destination.Persistent, snapshot[0].DeliveryMode)
	assert.Equal(t, destination.DefaultPriority, snapshot[0].Priority)
}

func TestSendTextMessage_Options(t *testing.T) {
	dest := memory.New("orders")
	conn := &fakeConn{}
	v, err := New(dest, &fakeBroker{conn: conn})
	require.NoError(t, err)

	before := time.Now()
	_, err = v.SendTextMessage("ping",
		WithHeaders(map[string]any{"origin": "runbook-7"}),
		WithDeliveryMode(destination.NonPersistent),
		WithPriority(9),
		WithTTL(time.Minute))
	require.NoError(t, err)

	require.Len(t, conn.sent, 1)
	msg := conn.sent[0]
	assert.Equal(t, "runbook-7", msg.Properties["origin"])
	assert.Equal(t, destination.NonPersistent, msg.DeliveryMode)
	assert.Equal(t, 9, msg.Priority)
	assert.False(t, msg.Expiration.Before(before.Add(time.Minute)))
	assert.Equal(t, 1, conn.closes)
}

func TestSendTextMessage_ClosesConnectionOnSendFailure(t *testing.T) {
	dest := memory.New("orders")
	conn := &fakeConn{sendErr: errors.New("wire fault")}
	v, err := New(dest, &fakeBroker{conn: conn})
	require.NoError(t, err)

	_, err = v.SendTextMessage("ping")
	assert.ErrorIs(t, err, ErrDiagnosticPublish)
	assert.Equal(t, 1, conn.closes, "connection must be released exactly once")
}

func TestSendTextMessage_ConnectFailure(t *testing.T) {
	dest := memory.New("orders")
	v, err := New(dest, &fakeBroker{connectErr: errors.New("refused")})
	require.NoError(t, err)

	_, err = v.SendTextMessage("ping")
	assert.ErrorIs(t, err, ErrDiagnosticPublish)
}

func TestSendTextMessage_CredentialsReachBroker(t *testing.T) {
	dest := memory.New("orders")
	b := broker.NewLocal("test-broker", "mqadmin://test-broker")
	require.NoError(t, b.AddDestination(dest))
	b.SetAuth(func(user, password string) error {
		if user != "admin" {
			return errors.New("bad user")
		}
		return nil
	})

	v, err := New(dest, b)
	require.NoError(t, err)

	_, err = v.SendTextMessage("ping")
	assert.ErrorIs(t, err, ErrDiagnosticPublish)

	id, err := v.SendTextMessage("ping", WithCredentials("admin", "secret"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
