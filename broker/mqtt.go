// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/mqadmin/destination"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// ErrPropertiesRequireV5 is returned when a diagnostic publish carries
// message properties over an MQTT 3.1.1 connection, which has no user
// property support.
var ErrPropertiesRequireV5 = errors.New("message properties require MQTT v5 user properties")

// MQTTConfig configures the remote broker adapter.
type MQTTConfig struct {
	// Name is the remote broker's name, Address its management address.
	Name    string
	Address string
	// Endpoint is the broker's client-facing MQTT listener, host:port.
	Endpoint string
	// Timeout bounds connect and publish waits.
	Timeout time.Duration
}

// MQTT adapts a remote broker reachable over its MQTT listener. Each
// Connect opens a fresh client connection; a circuit breaker stops repeated
// diagnostic publishes from hammering a broker that is down.
type MQTT struct {
	config  MQTTConfig
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewMQTT creates the adapter.
func NewMQTT(config MQTTConfig, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "mqtt-diagnostic-publish",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("breaker_state_change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &MQTT{config: config, breaker: breaker, logger: logger}
}

// Name returns the remote broker's name.
func (b *MQTT) Name() string {
	return b.config.Name
}

// Address returns the remote broker's management address.
func (b *MQTT) Address() string {
	return b.config.Address
}

// Connect opens a short-lived MQTT client connection.
func (b *MQTT) Connect(user, password string) (Connection, error) {
	client, err := b.breaker.Execute(func() (any, error) {
		opts := paho.NewClientOptions().
			AddBroker("tcp://" + b.config.Endpoint).
			SetClientID("mqadmin-" + uuid.NewString()).
			SetCleanSession(true).
			SetConnectTimeout(b.config.Timeout).
			SetAutoReconnect(false)
		if user != "" {
			opts.SetUsername(user)
			opts.SetPassword(password)
		}

		c := paho.NewClient(opts)
		token := c.Connect()
		if !token.WaitTimeout(b.config.Timeout) {
			return nil, fmt.Errorf("connect to %s: timeout", b.config.Endpoint)
		}
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("connect to %s: %w", b.config.Endpoint, err)
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return &mqttConnection{
		client:  client.(paho.Client),
		breaker: b.breaker,
		timeout: b.config.Timeout,
	}, nil
}

type mqttConnection struct {
	client  paho.Client
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// Send publishes the message body to the destination name as topic.
// Persistent delivery maps to QoS 1, non-persistent to QoS 0.
func (c *mqttConnection) Send(dest string, msg *destination.Message) error {
	if len(msg.Properties) > 0 {
		return ErrPropertiesRequireV5
	}

	qos := byte(0)
	if msg.DeliveryMode == destination.Persistent {
		qos = 1
	}

	_, err := c.breaker.Execute(func() (any, error) {
		token := c.client.Publish(dest, qos, false, msg.Payload)
		if !token.WaitTimeout(c.timeout) {
			return nil, fmt.Errorf("publish to %s: timeout", dest)
		}
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("publish to %s: %w", dest, err)
		}
		return nil, nil
	})
	return err
}

// Close disconnects the client, waiting briefly for in-flight work.
func (c *mqttConnection) Close() error {
	c.client.Disconnect(250)
	return nil
}
