package entity

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
)

// Step is one entry of a run's step envelope. Input and Output hold the
// stage's JSON boundary values so a run survives a round trip through a
// file-backed run store unchanged.
type Step struct {
	Agent  string               `json:"agent"`
	Status constants.StepStatus `json:"status"`
	Input  json.RawMessage      `json:"input"`
	Output json.RawMessage      `json:"output"`
	Error  string               `json:"error,omitempty"`
	Reason string               `json:"reason,omitempty"`
}

// Steps is keyed by stage name and always marshals in stage order.
type Steps map[constants.StepName]*Step

func (s Steps) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, name := range constants.StepOrder {
		st, ok := s[name]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(string(name))
		v, err := json.Marshal(st)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Run is one document's traversal of the pipeline, including the pause.
type Run struct {
	ID            string                  `json:"run_id"`
	DocumentID    string                  `json:"document_id,omitempty"`
	State         constants.RunState      `json:"state"`
	SystemPrompt  string                  `json:"system_prompt"`
	Steps         Steps                   `json:"steps"`
	OverallStatus constants.OverallStatus `json:"overall_status"`
	Error         string                  `json:"error,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// Step returns the named step or nil.
func (r *Run) Step(name constants.StepName) *Step {
	if r.Steps == nil {
		return nil
	}
	return r.Steps[name]
}

// Clone returns a deep copy so stored runs are never aliased by callers.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	out := *r
	if r.Steps != nil {
		out.Steps = make(Steps, len(r.Steps))
		for k, v := range r.Steps {
			st := *v
			st.Input = bytes.Clone(v.Input)
			st.Output = bytes.Clone(v.Output)
			out.Steps[k] = &st
		}
	}
	return &out
}

// RawJSON encodes v for a step envelope; nil becomes JSON null.
func RawJSON(v any) json.RawMessage {
	if v == nil {
		return json.RawMessage("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
