package fred

import (
	"bytes"
	"encoding/json"
)

// missingSentinel is FRED's placeholder for a date without data.
const missingSentinel = "."

// ObservationsResponse is the body of GET /fred/series/observations?file_type=json.
// Only the fields we use are decoded.
type ObservationsResponse struct {
	ObservationStart string           `json:"observation_start"`
	ObservationEnd   string           `json:"observation_end"`
	Units            string           `json:"units"`
	Count            int              `json:"count"`
	Observations     []RawObservation `json:"observations"`
}

// RawObservation is one upstream data point before normalization.
type RawObservation struct {
	Date  string   `json:"date"`
	Value RawValue `json:"value"`
}

// RawValue holds the textual value as sent by FRED. It also tolerates JSON
// numbers and null so that one odd element cannot fail the whole payload.
type RawValue string

func (v *RawValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*v = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*v = ""
			return nil
		}
		*v = RawValue(s)
	default:
		*v = RawValue(data)
	}
	return nil
}

// ErrorResponse is the body FRED returns with 4xx statuses.
type ErrorResponse struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}
