package models

import "lendee-scoring/internal/lendee"

// ComputeRequest is the body of POST /compute_and_send.
type ComputeRequest struct {
	UUIDs     []lendee.Identifier `json:"uuids"`
	OracleURL string              `json:"oracle_url,omitempty"`
}

// ComputeResponse reports the computed mapping and whether the relay
// accepted it. OracleStatusCode is omitted when no response arrived.
type ComputeResponse struct {
	OK               bool          `json:"ok"`
	Posted           bool          `json:"posted"`
	Mapping          lendee.Scores `json:"mapping"`
	OracleStatusCode *int          `json:"oracle_status_code,omitempty"`
}

// ScoreRequest is the body of POST /score.
type ScoreRequest struct {
	Items []lendee.FeatureItem `json:"items"`
}

type ScoreResponse struct {
	OK      bool          `json:"ok"`
	Mapping lendee.Scores `json:"mapping"`
}

type ErrorResponse struct {
	OK      bool        `json:"ok"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type HealthResponse struct {
	OK  bool   `json:"ok"`
	Env string `json:"env"`
}
