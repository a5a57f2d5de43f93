// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

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
	CodeStoreEmbeddingGetNotFound     Code = "store.embedding.get.not_found"
	CodeStoreEmbeddingPutDimension    Code = "store.embedding.put.dimension_mismatch"
	CodeStoreEmbeddingPutStale        Code = "store.embedding.put.stale"
	CodeStoreEmbeddingScanConsistency Code = "store.embedding.scan.consistency"
	CodeStoreEmbeddingDecodeCorrupt   Code = "store.embedding.decode.corrupt"
	CodeStoreRecordGetNotFound        Code = "store.record.get.not_found"
	CodeStoreOwnerGetNotFound         Code = "store.owner.get.not_found"
	CodeStoreOwnerCreateConflict      Code = "store.owner.create.conflict"
	CodeStoreRecordCreateConflict     Code = "store.record.create.conflict"
	CodeStoreDatabaseFailure          Code = "store.database.failure"
	CodeStoreBackendUnsupported       Code = "store.backend.unsupported"
	CodeStoreInvalidInput             Code = "store.invalid_input"
	CodeStoreDimensionPinnedMismatch  Code = "store.meta.dimension_mismatch"
	CodeStoreMigrateFailure           Code = "store.migrate.failure"

	CodeEmbeddingGenerateInvalidInput Code = "embedding.generate.invalid_input"
	CodeProviderConfigInvalid         Code = "provider.config.invalid"
	CodeProviderResponseMalformed     Code = "provider.response.malformed"
	CodeProviderUpstreamFailure       Code = "provider.upstream.failure"
	CodeProviderUpstreamTimeout       Code = "provider.upstream.timeout"
	CodeProviderNotFound              Code = "provider.registry.not_found"

	CodeSearchQueryInvalidInput      Code = "search.query.invalid_input"
	CodeSearchQueryDimensionMismatch Code = "search.query.dimension_mismatch"

	CodeReconcileListFailure   Code = "reconcile.candidates.list.failure"
	CodeReconcileRunIncomplete Code = "reconcile.run.incomplete"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSecretInvalidInput   Code = "secret.input.invalid"
	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretListFailure    Code = "secret.list.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"

	CodeCLISetupFailure  Code = "cli.setup.failure"
	CodeCLIInputInvalid  Code = "cli.input.invalid"
	CodeCLIRenderFailure Code = "cli.render.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldRecordID(value string) Attr {
	return Field("record_id", value)
}

func FieldOwnerID(value string) Attr {
	return Field("owner_id", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldDimension(want, got int) Attr {
	return Field("dimension", fmt.Sprintf("want %d got %d", want, got))
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

// CodeOf returns the innermost code in the chain, or "" for plain errors.
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

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsDimensionMismatch(err error) bool {
	return reason(CodeOf(err)) == "dimension_mismatch"
}

func IsConsistency(err error) bool {
	return reason(CodeOf(err)) == "consistency"
}

func IsStale(err error) bool {
	return reason(CodeOf(err)) == "stale"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

// IsProviderFailure reports whether err originated in an embedding provider:
// upstream failures, timeouts and malformed responses.
func IsProviderFailure(err error) bool {
	return IsUpstreamFailure(err) || HasCode(err, CodeProviderResponseMalformed)
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && (reason(code) == "failure" || reason(code) == "timeout")
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err), IsStale(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsDimensionMismatch(err):
		return http.StatusUnprocessableEntity
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err), HasCode(err, CodeProviderResponseMalformed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(CodeServerInternalFailure).Wrap(joined)
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
