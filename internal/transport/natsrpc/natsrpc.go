// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

// Package natsrpc provides typed JSON request/reply over NATS with
// OpenTelemetry trace propagation.
package natsrpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// headerCarrier adapts nats.Msg headers to propagation.TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Connect dials url with a client name and unlimited reconnects.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name(name), nats.MaxReconnects(-1))
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeTransportConnectFailure, "connecting to nats at %s", url)
	}
	return nc, nil
}

// Request sends req as JSON and decodes the reply into Resp. The trace
// context in ctx travels in the message headers. Without a deadline on ctx
// nats.DefaultTimeout applies.
func Request[Req, Resp any](ctx context.Context, nc *nats.Conn, subject string, req Req) (Resp, error) {
	var zero Resp
	data, err := json.Marshal(req)
	if err != nil {
		return zero, sageerr.Wrap(err, sageerr.CodeTransportRequestInvalid, "encoding request")
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, nats.DefaultTimeout)
		defer cancel()
	}
	reply, err := nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return zero, sageerr.Wrapf(err, sageerr.CodeTransportConnectFailure, "requesting %s", subject)
	}

	var out Resp
	if err := json.Unmarshal(reply.Data, &out); err != nil {
		return zero, sageerr.Wrapf(err, sageerr.CodeTransportRequestInvalid, "decoding reply from %s", subject)
	}
	return out, nil
}

// Handle serves subject in queue group queue. Each request is decoded into
// Req and passed to fn with the caller's trace context; the returned value
// is sent back as JSON. Requests that fail to decode are answered with
// onInvalid. An empty queue subscribes without a group.
func Handle[Req, Resp any](nc *nats.Conn, subject, queue string, fn func(context.Context, Req) Resp, onInvalid func(error) Resp) (*nats.Subscription, error) {
	handler := func(msg *nats.Msg) {
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))

		var resp Resp
		var req Req
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			resp = onInvalid(sageerr.Wrap(err, sageerr.CodeTransportRequestInvalid, "decoding request"))
		} else {
			resp = fn(ctx, req)
		}

		if msg.Reply == "" {
			return
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return
		}
		_ = msg.Respond(data)
	}

	var (
		sub *nats.Subscription
		err error
	)
	if queue == "" {
		sub, err = nc.Subscribe(subject, handler)
	} else {
		sub, err = nc.QueueSubscribe(subject, queue, handler)
	}
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeTransportConnectFailure, "subscribing to %s", subject)
	}
	return sub, nil
}

// Drain unsubscribes sub after in-flight messages are handled, waiting at
// most timeout.
func Drain(sub *nats.Subscription, timeout time.Duration) error {
	if sub == nil {
		return nil
	}
	if err := sub.Drain(); err != nil {
		return sageerr.Wrap(err, sageerr.CodeTransportConnectFailure, "draining subscription")
	}
	deadline := time.Now().Add(timeout)
	for sub.IsValid() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}
