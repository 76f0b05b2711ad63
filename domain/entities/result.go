package entities

import "time"

// Step records one completed (or attempted) automation step for diagnostics.
type Step struct {
	Name     string    `json:"name"`
	Detail   string    `json:"detail,omitempty"`
	OK       bool      `json:"ok"`
	At       time.Time `json:"at"`
	Duration float64   `json:"duration_seconds,omitempty"`
}

// FillAttempt records one resolver strategy tried against one form field.
type FillAttempt struct {
	Field    string `json:"field"`
	Strategy string `json:"strategy"`
	OK       bool   `json:"ok"`
}

// RunResult is the single structured outcome returned by every public entry
// point. Failures are encoded here; nothing crosses the API as a fault.
type RunResult struct {
	RunID        string            `json:"run_id"`
	Success      bool              `json:"success"`
	State        AutomationState   `json:"state"`
	Steps        []Step            `json:"steps"`
	FillAttempts []FillAttempt     `json:"fill_attempts,omitempty"`
	Error        string            `json:"error,omitempty"`
	Payload      map[string]string `json:"payload,omitempty"`
}

// StepNames - returns the ordered names of the recorded steps
func (r RunResult) StepNames() []string {
	names := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		names = append(names, s.Name)
	}
	return names
}

// WithPayload - sets one payload entry, allocating the map on first use
func (r *RunResult) WithPayload(key, value string) *RunResult {
	if r.Payload == nil {
		r.Payload = make(map[string]string)
	}
	r.Payload[key] = value
	return r
}

// StepRecorder accumulates steps and field-fill attempts in order during a
// run.
type StepRecorder struct {
	steps    []Step
	attempts []FillAttempt
}

// Record - appends a successful step
func (sr *StepRecorder) Record(name string) {
	sr.steps = append(sr.steps, Step{Name: name, OK: true, At: time.Now()})
}

// RecordDetail - appends a step with an outcome and free-form detail
func (sr *StepRecorder) RecordDetail(name, detail string, ok bool) {
	sr.steps = append(sr.steps, Step{Name: name, Detail: detail, OK: ok, At: time.Now()})
}

// Steps - returns a copy of the recorded steps
func (sr *StepRecorder) Steps() []Step {
	out := make([]Step, len(sr.steps))
	copy(out, sr.steps)
	return out
}

// RecordAttempt - appends one field-fill strategy attempt
func (sr *StepRecorder) RecordAttempt(a FillAttempt) {
	sr.attempts = append(sr.attempts, a)
}

// Attempts - returns a copy of the recorded fill attempts
func (sr *StepRecorder) Attempts() []FillAttempt {
	out := make([]FillAttempt, len(sr.attempts))
	copy(out, sr.attempts)
	return out
}
