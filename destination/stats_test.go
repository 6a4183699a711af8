// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package destination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatistics_EnqueueDequeue(t *testing.T) {
	stats := NewStatistics()

	stats.Enqueue(2 * time.Millisecond)
	stats.Enqueue(4 * time.Millisecond)
	stats.Dequeue()

	assert.Equal(t, uint64(2), stats.Enqueues())
	assert.Equal(t, uint64(1), stats.Dequeues())
	assert.Equal(t, int64(1), stats.QueueSize())
}

func TestStatistics_DispatchTracksInflight(t *testing.T) {
	stats := NewStatistics()

	stats.Dispatch()
	stats.Dispatch()
	assert.Equal(t, uint64(2), stats.Dispatched())
	assert.Equal(t, int64(2), stats.Inflight())

	stats.Acknowledge()
	assert.Equal(t, int64(1), stats.Inflight())
	assert.Equal(t, uint64(2), stats.Dispatched())
}

func TestStatistics_ConsumersAndProducers(t *testing.T) {
	stats := NewStatistics()

	stats.AddConsumer()
	stats.AddConsumer()
	stats.RemoveConsumer()
	stats.AddProducer()

	assert.Equal(t, int64(1), stats.Consumers())
	assert.Equal(t, int64(1), stats.Producers())
}

func TestStatistics_Reset(t *testing.T) {
	stats := NewStatistics()

	stats.Enqueue(time.Millisecond)
	stats.Dispatch()
	stats.AddConsumer()
	stats.AddProducer()
	stats.CacheMessage()

	stats.Reset()

	assert.Equal(t, uint64(0), stats.Enqueues())
	assert.Equal(t, uint64(0), stats.Dequeues())
	assert.Equal(t, uint64(0), stats.Dispatched())
	assert.Equal(t, int64(0), stats.Inflight())
	assert.Equal(t, int64(0), stats.Consumers())
	assert.Equal(t, int64(0), stats.Producers())
	assert.Equal(t, int64(0), stats.QueueSize())
	assert.Equal(t, int64(0), stats.MessagesCached())
	assert.Equal(t, time.Duration(0), stats.ProcessTime().Max())
}

func TestTimeStatistic(t *testing.T) {
	var ts TimeStatistic

	assert.Equal(t, time.Duration(0), ts.Average())

	ts.Add(10 * time.Millisecond)
	ts.Add(20 * time.Millisecond)
	ts.Add(60 * time.Millisecond)

	assert.Equal(t, uint64(3), ts.Count())
	assert.Equal(t, 10*time.Millisecond, ts.Min())
	assert.Equal(t, 60*time.Millisecond, ts.Max())
	assert.Equal(t, 30*time.Millisecond, ts.Average())
}

func TestMemoryUsage(t *testing.T) {
	mem := NewMemoryUsage(1000)

	mem.Add(250)
	assert.Equal(t, int64(250), mem.Used())
	assert.Equal(t, 25, mem.PercentUsage())

	mem.Release(500)
	assert.Equal(t, int64(0), mem.Used())

	mem.SetLimit(0)
	assert.Equal(t, 0, mem.PercentUsage())

	mem.SetUsagePortion(0.5)
	assert.Equal(t, 0.5, mem.UsagePortion())
}

func TestMessage_ExpirationHelpers(t *testing.T) {
	now := time.Now()

	msg := NewTextMessage("ping")
	assert.False(t, msg.Expired(now))
	assert.Equal(t, time.Duration(0), msg.RemainingTTL(now))
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, DefaultPriority, msg.Priority)

	msg.Expiration = now.Add(time.Minute)
	assert.Equal(t, time.Minute, msg.RemainingTTL(now))
	assert.True(t, msg.Expired(now.Add(2*time.Minute)))
	assert.Equal(t, time.Duration(0), msg.RemainingTTL(now.Add(2*time.Minute)))
}

func TestMessage_Copy(t *testing.T) {
	msg := NewTextMessage("body")
	msg.Properties["region"] = "eu"

	c := msg.Copy()
	c.Payload[0] = 'x'
	c.Properties["region"] = "us"

	assert.Equal(t, "body", string(msg.Payload))
	assert.Equal(t, "eu", msg.Properties["region"])
}
