// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package types

// Suggestion is one ranked candidate code returned to callers.
type Suggestion struct {
	Code          string  `json:"code" msgpack:"code" doc:"Catalog code as stored"`
	FormattedCode string  `json:"formatted_code" msgpack:"formatted_code" doc:"Code with a dot after the third character"`
	Description   string  `json:"description" msgpack:"description" doc:"Human-readable description"`
	Score         float64 `json:"score" msgpack:"score" doc:"Squared Euclidean distance rounded to 3 places; lower is closer"`
}

// SuggestRequest is the transport-neutral request shape.
type SuggestRequest struct {
	Text string `json:"text" doc:"Free clinical text"`
	TopN int    `json:"top_n,omitempty" minimum:"0" doc:"Maximum number of results; 0 selects the server default"`
}

// SuggestResponse is the transport-neutral response shape. Error is set by
// transports that cannot carry a status code.
type SuggestResponse struct {
	RequestID  string       `json:"request_id,omitempty"`
	Normalized string       `json:"normalized,omitempty"`
	Results    []Suggestion `json:"results"`
	Error      string       `json:"error,omitempty"`
	ErrorCode  string       `json:"error_code,omitempty"`
}
