package computeandsend

import "lendee-scoring/internal/lendee"

// Input is read from the job variables. Ids may be strings or JSON literals.
type Input struct {
	UUIDs     []lendee.Identifier `json:"uuids"`
	OracleURL string              `json:"oracleUrl,omitempty"`
}

// Output is merged back into the process instance.
type Output struct {
	Mapping          lendee.Scores `json:"mapping"`
	Posted           bool          `json:"posted"`
	OracleStatusCode int           `json:"oracleStatusCode,omitempty"`
}
