// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/absmach/mqadmin/destination"
	"github.com/klauspost/compress/zstd"
)

// MessageSchemaName is the registry name of the broker message schema.
const MessageSchemaName = "BrokerMessage"

// DefaultBodyPreview caps the body field length in exported records.
const DefaultBodyPreview = 255

// ContentEncodingProperty names the message property that flags a
// compressed payload.
const ContentEncodingProperty = "content-encoding"

// MessageSchema returns the schema every converted broker message follows.
func MessageSchema() *Schema {
	return &Schema{
		Name: MessageSchemaName,
		Key:  "messageID",
		Fields: []Field{
			{Name: "messageID", Type: TypeString},
			{Name: "deliveryMode", Type: TypeString},
			{Name: "priority", Type: TypeInt},
			{Name: "timestamp", Type: TypeTime},
			{Name: "expiration", Type: TypeTime},
			{Name: "size", Type: TypeInt},
			{Name: "body", Type: TypeString},
			{Name: "properties", Type: TypeMap},
		},
	}
}

// Converter turns broker messages into records following MessageSchema.
// Payloads flagged with the zstd content encoding are decompressed before
// the body preview is taken. Safe for concurrent use.
type Converter struct {
	schema      *Schema
	bodyPreview int
	zstd        *zstd.Decoder
}

// NewConverter creates a converter with the default body preview length.
func NewConverter() (*Converter, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Converter{
		schema:      MessageSchema(),
		bodyPreview: DefaultBodyPreview,
		zstd:        dec,
	}, nil
}

// Schema returns the schema all records from this converter follow.
func (c *Converter) Schema() *Schema {
	return c.schema
}

// Convert builds the record for one message. Unsupported property value
// types and undecodable payloads fail the conversion of this message only.
func (c *Converter) Convert(msg *destination.Message) (Record, error) {
	if msg == nil {
		return nil, errors.New("cannot convert nil message")
	}
	if msg.ID == "" {
		return nil, errors.New("message has no identifier")
	}

	payload := msg.Payload
	if enc, ok := msg.Properties[ContentEncodingProperty].(string); ok && enc == "zstd" {
		decoded, err := c.zstd.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress payload of %s: %w", msg.ID, err)
		}
		payload = decoded
	}

	props := make(map[string]any, len(msg.Properties))
	for k, v := range msg.Properties {
		nv, err := normalizeProperty(v)
		if err != nil {
			return nil, fmt.Errorf("property %q of %s: %w", k, msg.ID, err)
		}
		props[k] = nv
	}

	return Record{
		"messageID":    msg.ID,
		"deliveryMode": msg.DeliveryMode.String(),
		"priority":     int64(msg.Priority),
		"timestamp":    msg.Timestamp,
		"expiration":   msg.Expiration,
		"size":         int64(len(payload)),
		"body":         c.bodyField(payload),
		"properties":   props,
	}, nil
}

// bodyField renders a printable preview: text payloads verbatim, binary ones
// base64-encoded, both truncated to the preview cap.
func (c *Converter) bodyField(payload []byte) string {
	var body string
	if utf8.Valid(payload) {
		body = string(payload)
	} else {
		body = base64.StdEncoding.EncodeToString(payload)
	}
	if len(body) > c.bodyPreview {
		body = body[:c.bodyPreview]
	}
	return body
}

func normalizeProperty(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int64, float64:
		return t, nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case float32:
		return float64(t), nil
	default:
		return nil, fmt.Errorf("unsupported property type %T", v)
	}
}
