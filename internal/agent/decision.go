package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DecisionType tags the kind of step the model chose
type DecisionType string

const (
	DecisionPlan   DecisionType = "plan"
	DecisionAction DecisionType = "action"
	DecisionOutput DecisionType = "output"

	// echoed history kinds; kept and treated like a plan
	DecisionUser        DecisionType = "user"
	DecisionObservation DecisionType = "observation"
)

// ErrParseFailure is returned when a reply is not a recognisable decision
var ErrParseFailure = errors.New("failed to parse model decision")

// Decision is one structured step emitted by the model
type Decision struct {
	Type     DecisionType    `json:"type"`
	Plan     string          `json:"plan,omitempty"`
	Function string          `json:"function,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
	Output   string          `json:"output,omitempty"`
}

// ParseDecision decodes a raw model reply. Text around a single JSON object
// is tolerated. Any non-empty type other than action and output is
// non-terminal.
func ParseDecision(raw string) (Decision, error) {
	var d Decision
	data := bytes.TrimSpace([]byte(raw))
	if err := json.Unmarshal(data, &d); err != nil {
		start := bytes.IndexByte(data, '{')
		end := bytes.LastIndexByte(data, '}')
		if start == -1 || end <= start {
			return Decision{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
		}
		d = Decision{}
		if err := json.Unmarshal(data[start:end+1], &d); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
		}
	}

	switch d.Type {
	case "":
		return Decision{}, fmt.Errorf("%w: missing decision type", ErrParseFailure)
	case DecisionAction:
		if d.Function == "" {
			return Decision{}, fmt.Errorf("%w: action without function", ErrParseFailure)
		}
	}
	return d, nil
}
