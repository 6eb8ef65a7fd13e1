// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package natsrpc

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/codesage-dev/codesage/internal/suggest"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/codesage-dev/codesage/pkg/types"
)

// DefaultSubject is the subject suggest requests are served on.
const DefaultSubject = "codesage.suggest"

// Suggester runs the suggestion pipeline.
type Suggester interface {
	Run(ctx context.Context, text string, topN int) (suggest.Outcome, error)
}

// Responder answers suggest requests over NATS. Failures are reported in
// the Error and ErrorCode fields of the reply.
type Responder struct {
	Suggester   Suggester
	DefaultTopN int
	MaxTopN     int
	Logger      *slog.Logger
}

// Serve subscribes the responder. Use Drain on the returned subscription
// to stop.
func (r *Responder) Serve(nc *nats.Conn, subject, queue string) (*nats.Subscription, error) {
	if r.Suggester == nil {
		return nil, sageerr.New(sageerr.CodeServerConfigInvalid, "suggester is required")
	}
	if subject == "" {
		subject = DefaultSubject
	}
	sub, err := Handle(nc, subject, queue, r.handle, failed)
	if err != nil {
		return nil, err
	}
	r.logger().Info("nats responder subscribed", "subject", subject, "queue", queue)
	return sub, nil
}

func (r *Responder) handle(ctx context.Context, req types.SuggestRequest) types.SuggestResponse {
	ctx, span := otel.Tracer("codesage/natsrpc").Start(ctx, "suggest")
	defer span.End()

	id := uuid.NewString()
	span.SetAttributes(attribute.String("codesage.request_id", id), attribute.Int("codesage.top_n", req.TopN))

	topN := req.TopN
	if topN == 0 {
		topN = max(r.DefaultTopN, 1)
	}
	if r.MaxTopN > 0 && topN > r.MaxTopN {
		err := sageerr.Errorf(sageerr.CodeTransportRequestInvalid, "top_n must not exceed %d, got %d", r.MaxTopN, topN)
		span.SetStatus(codes.Error, err.Error())
		return withID(failed(err), id)
	}

	out, err := r.Suggester.Run(ctx, req.Text, topN)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger().Warn("nats suggest failed", "request_id", id, "code", sageerr.CodeOf(err), "error", err)
		return withID(failed(err), id)
	}
	return types.SuggestResponse{RequestID: id, Normalized: out.Normalized, Results: out.Suggestions}
}

func (r *Responder) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func failed(err error) types.SuggestResponse {
	return types.SuggestResponse{
		Results:   []types.Suggestion{},
		Error:     err.Error(),
		ErrorCode: string(sageerr.CodeOf(err)),
	}
}

func withID(resp types.SuggestResponse, id string) types.SuggestResponse {
	resp.RequestID = id
	return resp
}

// Suggest calls a remote Responder. An error reply is returned as an error
// carrying the remote code, so sageerr classification works across the
// wire.
func Suggest(ctx context.Context, nc *nats.Conn, subject string, req types.SuggestRequest) (types.SuggestResponse, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	resp, err := Request[types.SuggestRequest, types.SuggestResponse](ctx, nc, subject, req)
	if err != nil {
		return resp, err
	}
	if resp.Error != "" {
		code := sageerr.Code(resp.ErrorCode)
		if code == "" {
			code = sageerr.CodeServerInternalFailure
		}
		return resp, sageerr.New(code, resp.Error, sageerr.Field("request_id", resp.RequestID))
	}
	return resp, nil
}
