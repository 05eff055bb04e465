package domain

import (
	"errors"
	"time"
)

// Outcome is the result of processing one unit of a batch
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// UnitResult records what happened to one contract, group or vehicle in a batch
type UnitResult struct {
	Key     string  `json:"key"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
	Error   string  `json:"error,omitempty"`
	// Count is the number of records created or changed for the unit
	Count int `json:"count,omitempty"`
}

// BatchReport accumulates per-unit results. Failures in one unit never abort the batch.
type BatchReport struct {
	Job        string       `json:"job"`
	DryRun     bool         `json:"dryRun"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Results    []UnitResult `json:"results"`
}

// NewBatchReport starts a report for the named job
func NewBatchReport(job string, startedAt time.Time) *BatchReport {
	return &BatchReport{Job: job, StartedAt: startedAt, Results: []UnitResult{}}
}

// Success records a processed unit
func (r *BatchReport) Success(key string, count int, reason string) {
	r.Results = append(r.Results, UnitResult{Key: key, Outcome: OutcomeSuccess, Count: count, Reason: reason})
}

// Skip records a unit that needed no work or could not be processed safely
func (r *BatchReport) Skip(key, reason string) {
	r.Results = append(r.Results, UnitResult{Key: key, Outcome: OutcomeSkipped, Reason: reason})
}

// Fail records a unit whose processing returned an error
func (r *BatchReport) Fail(key string, err error) {
	res := UnitResult{Key: key, Outcome: OutcomeFailed}
	if err != nil {
		res.Error = err.Error()
	}
	r.Results = append(r.Results, res)
}

// Merge appends the results of another report
func (r *BatchReport) Merge(other *BatchReport) {
	if other == nil {
		return
	}
	r.Results = append(r.Results, other.Results...)
}

// Finish stamps the finish time
func (r *BatchReport) Finish(at time.Time) {
	r.FinishedAt = at
}

// Counts returns the number of succeeded, skipped and failed units
func (r *BatchReport) Counts() (succeeded, skipped, failed int) {
	for _, res := range r.Results {
		switch res.Outcome {
		case OutcomeSuccess:
			succeeded++
		case OutcomeSkipped:
			skipped++
		case OutcomeFailed:
			failed++
		}
	}
	return
}

// Total returns the sum of Count across successful units
func (r *BatchReport) Total() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeSuccess {
			n += res.Count
		}
	}
	return n
}

// HasFailures reports whether any unit failed
func (r *BatchReport) HasFailures() bool {
	_, _, failed := r.Counts()
	return failed > 0
}

// ClassifyUnitError records a reconciliation conflict or ambiguous plate as a
// skip for manual review and every other error as a failure
func (r *BatchReport) ClassifyUnitError(key string, err error) {
	var conflict *ReconciliationConflict
	var ambiguous *LinkRepairAmbiguous
	if errors.As(err, &conflict) || errors.As(err, &ambiguous) {
		r.Skip(key, err.Error())
		return
	}
	r.Fail(key, err)
}
