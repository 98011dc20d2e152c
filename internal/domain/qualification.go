package domain

import "time"

// Criterion names for the four-check qualification gate
const (
	CriterionBuffer      = "buffer"
	CriterionMinHolding  = "min_holding"
	CriterionCorrelation = "correlation"
	CriterionLegLimit    = "leg_limit"
)

// CriterionResult is one sub-check of the qualification gate with its
// measured value and the threshold it was compared against.
type CriterionResult struct {
	Name      string  `json:"name"`
	Passed    bool    `json:"passed"`
	Measured  float64 `json:"measured"`
	Threshold float64 `json:"threshold"`
	Detail    string  `json:"detail,omitempty"`
}

// QualificationResult holds the four sub-results for one candidate and the
// overall verdict. It is created fresh per evaluation and never partially
// updated: OverallPass is computed exactly once from the four sub-results
// and is never cached or overridden, so the aggregate can never disagree
// with the per-criterion detail.
type QualificationResult struct {
	InstrumentID string            `json:"instrument_id"`
	AsOf         time.Time         `json:"as_of"`
	Criteria     []CriterionResult `json:"criteria"`
	OverallPass  bool              `json:"overall_pass"`
}

// FailedCriteria returns the names of all failed sub-checks
func (q *QualificationResult) FailedCriteria() []string {
	var failed []string
	for _, c := range q.Criteria {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	return failed
}

// Criterion returns the sub-result with the given name. ok is false when the
// criterion was not evaluated.
func (q *QualificationResult) Criterion(name string) (CriterionResult, bool) {
	for _, c := range q.Criteria {
		if c.Name == name {
			return c, true
		}
	}
	return CriterionResult{}, false
}
