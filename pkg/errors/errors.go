// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeSuggestInputInvalid     Code = "suggest.input.invalid_input"
	CodeSuggestResourcesMissing Code = "suggest.resources.not_ready"

	CodeEmbedRequestInvalid  Code = "embed.request.invalid"
	CodeEmbedResponseInvalid Code = "embed.response.invalid"
	CodeEmbedUpstreamFailure Code = "embed.upstream.failure"
	CodeEmbedProviderUnknown Code = "embed.provider.not_found"

	CodeIndexNotReady           Code = "index.search.not_ready"
	CodeIndexMisaligned         Code = "index.build.misaligned"
	CodeIndexQueryInvalid       Code = "index.query.invalid_input"
	CodeIndexBackendUnsupported Code = "index.backend.unsupported"
	CodeIndexStoreFailure       Code = "index.store.database_failure"
	CodeIndexUpstreamFailure    Code = "index.upstream.failure"
	CodeIndexFormatInvalid      Code = "index.format.invalid_format"
	CodeIndexLoadFailure        Code = "index.load.read.failure"

	CodeCatalogLoadFailure   Code = "catalog.load.read.failure"
	CodeCatalogFormatInvalid Code = "catalog.parse.invalid_format"

	CodeDatasetFetchFailure Code = "dataset.fetch.upstream.failure"
	CodeDatasetNotFound     Code = "dataset.verify.not_found"
	CodeDatasetWriteFailure Code = "dataset.write.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeTransportConnectFailure Code = "transport.connect.failure"
	CodeTransportRequestInvalid Code = "transport.request.invalid"

	CodeCLIServerNotRunning Code = "cli.server.not_running"
	CodeCLIRequestFailure   Code = "cli.request.failure"
	CodeCLIResponseInvalid  Code = "cli.response.invalid"
	CodeCLISetupFailure     Code = "cli.setup.failure"
	CodeCLIInputInvalid     Code = "cli.input.invalid"

	CodeSecretInvalidInput   Code = "secret.input.invalid_input"
	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretListFailure    Code = "secret.list.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
}

func FieldPath(value string) Attr {
	return Field("path", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// Reclassify gives err a new code. oops reports the innermost code of a
// chain, so a coded err cannot simply be wrapped: it is replaced by a new
// error carrying its message, with the old code kept in the "cause" field.
func Reclassify(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	old := CodeOf(err)
	if old == "" {
		return Wrap(err, code, msg, fields...)
	}
	if old == code {
		return err
	}
	fields = append(fields, Field("cause", string(old)))
	return New(code, msg+": "+err.Error(), fields...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// IsEmbeddingUnavailable reports whether the embedding capability failed.
// Callers may retry.
func IsEmbeddingUnavailable(err error) bool {
	return HasCode(err, CodeEmbedUpstreamFailure)
}

// IsIndexNotReady reports whether the similarity index or its catalog has
// not been loaded.
func IsIndexNotReady(err error) bool {
	return reason(CodeOf(err)) == "not_ready"
}

// IsDataMisalignment reports whether catalog and index populations differ.
func IsDataMisalignment(err error) bool {
	return reason(CodeOf(err)) == "misaligned"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsIndexNotReady(err):
		return http.StatusServiceUnavailable
	case IsEmbeddingUnavailable(err):
		return http.StatusServiceUnavailable
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
