package document

import (
	"fmt"
	"time"

	"github.com/hseops/fieldsafe/internal/common"
)

// Status of an inspection finding.
type Status string

const (
	StatusOpen   Status = "Open"
	StatusClosed Status = "Closed"
)

// AuditEntry records a status change on an inspection.
type AuditEntry struct {
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Comment   string    `json:"comment,omitempty"`
	Action    string    `json:"action"`
}

// Inspection is the payload of a safety-inspection document. The form fields
// follow the Minerba standard: hazard code, severity/likelihood on a 5x5
// matrix, control hierarchy and a person-in-charge with a due date.
type Inspection struct {
	Inspector   string `json:"inspector"`
	InspectorID string `json:"inspector_id,omitempty"`
	Location    string `json:"location"`
	Company     string `json:"company,omitempty"`
	Shift       string `json:"shift,omitempty"`
	Weather     string `json:"weather,omitempty"`

	Finding    string    `json:"finding"`
	HazardCode string    `json:"hazard_code,omitempty"`
	Severity   int       `json:"severity"`
	Likelihood int       `json:"likelihood"`
	RiskScore  int       `json:"risk_score"`
	RiskLevel  RiskLevel `json:"risk_level"`

	Recommendation string `json:"recommendation,omitempty"`
	Hierarchy      string `json:"hierarchy,omitempty"`
	PIC            string `json:"pic,omitempty"`
	DueDate        string `json:"due_date,omitempty"`

	Status Status       `json:"status"`
	Audit  []AuditEntry `json:"audit,omitempty"`
}

// DocumentType implements Payload.
func (Inspection) DocumentType() Type { return TypeInspection }

// Recalculate derives the risk score and level from severity and likelihood.
func (i *Inspection) Recalculate() {
	i.RiskScore = Score(i.Severity, i.Likelihood)
	i.RiskLevel = LevelForScore(i.RiskScore)
}

// Validate checks the required fields and matrix bounds.
func (i *Inspection) Validate() error {
	if i.Location == "" {
		return fmt.Errorf("%w: missing location", common.ErrInvalidPayload)
	}
	if i.Finding == "" {
		return fmt.Errorf("%w: missing finding", common.ErrInvalidPayload)
	}
	if i.Severity < 1 || i.Severity > 5 {
		return common.ErrInvalidSeverity
	}
	if i.Likelihood < 1 || i.Likelihood > 5 {
		return common.ErrInvalidLikelihood
	}
	if i.Status != StatusOpen && i.Status != StatusClosed {
		return fmt.Errorf("%w: status must be %q or %q", common.ErrInvalidPayload, StatusOpen, StatusClosed)
	}
	return nil
}
