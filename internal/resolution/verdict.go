package resolution

import (
	"errors"
	"fmt"
	"time"
)

// Method is the evidence channel that produced a verdict.
type Method string

const (
	MethodNone      Method = "none"
	MethodBiometric Method = "biometric"
	MethodTextual   Method = "textual"
)

// State is a step of the per-report decision procedure.
type State string

const (
	StateStart              State = "START"
	StateBiometricAttempted State = "BIOMETRIC_ATTEMPTED"
	StateTextAttempted      State = "TEXT_ATTEMPTED"
	StateDecided            State = "DECIDED"
)

// Report is one sighting to resolve.
type Report struct {
	Embedding     []float32 // face embedding of the sighting photo, nil when no face was supplied
	Details       string    // free-text description written by the reporter
	ClaimedName   string    // name the reporter believes the person has, optional
	Location      string
	ReporterName  string
	ReporterPhone string
	ReportedAt    time.Time // defaults to the time of recording
}

// Verdict is the outcome of resolving a report.
type Verdict struct {
	MatchFound       bool    `json:"match_found"`
	Method           Method  `json:"method"`
	Identity         string  `json:"identity,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"` // 0..1; textual verdicts use score/100
	TextScore        float64 `json:"text_score,omitempty"` // 0..100 score of the text channel
	CaseID           string  `json:"case_id,omitempty"`
	// LastSeenLocation is where the matched identity was sighted before this
	// report. It is read before the report itself is recorded, so it never
	// echoes the report's own location back.
	LastSeenLocation string  `json:"last_seen_location"`
	NotificationSent bool    `json:"notification_sent"`
	Corroborated     bool    `json:"corroborated"`
	Recorded         bool    `json:"recorded"` // the report was persisted as a sighting
	Trace            []State `json:"trace"`
}

// CollaboratorError reports that an external dependency failed, as opposed to
// the report simply not matching anything.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// IsCollaboratorFailure reports whether err was caused by a failing collaborator.
func IsCollaboratorFailure(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}

func collaboratorErr(op string, err error) error {
	return &CollaboratorError{Op: op, Err: err}
}
