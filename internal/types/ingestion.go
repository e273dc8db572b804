package types

import (
	"sort"
	"time"
)

// DownloadOutcome is the final result for one PeriodKey within a run.
type DownloadOutcome string

const (
	OutcomeSkipped    DownloadOutcome = "skipped"
	OutcomeDownloaded DownloadOutcome = "downloaded"
	OutcomeNotFound   DownloadOutcome = "not_found"
	OutcomeFailed     DownloadOutcome = "failed"
)

// RunStatus is the terminal state of one pipeline execution.
type RunStatus string

const (
	RunStatusAlreadyCurrent        RunStatus = "already_current"
	RunStatusNotPublished          RunStatus = "not_published"
	RunStatusCompleted             RunStatus = "completed"
	RunStatusCompletedWithFailures RunStatus = "completed_with_failures"
	RunStatusBuildFailed           RunStatus = "build_failed"
)

// Healthy reports whether the status needs no operator attention.
func (s RunStatus) Healthy() bool {
	switch s {
	case RunStatusAlreadyCurrent, RunStatusNotPublished, RunStatusCompleted:
		return true
	}
	return false
}

type DownloadCounts struct {
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	NotFound   int `json:"notFound"`
	Failed     int `json:"failed"`
}

// DownloadReport is the ledger produced by one orchestrated download pass.
type DownloadReport struct {
	Counts       DownloadCounts                `json:"counts"`
	FailedKeys   []PeriodKey                   `json:"-"`
	NotFoundKeys []PeriodKey                   `json:"-"`
	Outcomes     map[PeriodKey]DownloadOutcome `json:"-"`
}

func NewDownloadReport() DownloadReport {
	return DownloadReport{Outcomes: make(map[PeriodKey]DownloadOutcome)}
}

// Record stores the outcome for key. A key is recorded at most once per run;
// later calls for the same key are ignored.
func (r *DownloadReport) Record(key PeriodKey, outcome DownloadOutcome) {
	if _, exists := r.Outcomes[key]; exists {
		return
	}
	r.Outcomes[key] = outcome

	switch outcome {
	case OutcomeDownloaded:
		r.Counts.Downloaded++
	case OutcomeSkipped:
		r.Counts.Skipped++
	case OutcomeNotFound:
		r.Counts.NotFound++
		r.NotFoundKeys = append(r.NotFoundKeys, key)
	case OutcomeFailed:
		r.Counts.Failed++
		r.FailedKeys = append(r.FailedKeys, key)
	}
}

// Finalize sorts the key lists so the report is independent of completion order.
func (r *DownloadReport) Finalize() {
	SortKeys(r.FailedKeys)
	SortKeys(r.NotFoundKeys)
}

func SortKeys(keys []PeriodKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

func KeyStrings(keys []PeriodKey) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key.String())
	}
	return out
}

// ConsolidationResult describes the dataset produced (or reused) by a run.
type ConsolidationResult struct {
	OutputPath      string `json:"outputPath"`
	Rebuilt         bool   `json:"rebuilt"`
	Rows            int64  `json:"rows"`
	Blocks          int    `json:"blocks"`
	Documents       int    `json:"documents"`
	DocumentsFailed int    `json:"documentsFailed"`
	SkippedNames    int    `json:"skippedNames"`
	OutputBytes     int64  `json:"outputBytes"`
}

type SyncResult struct {
	Uploaded int      `json:"uploaded"`
	Deleted  int      `json:"deleted"`
	Kept     int      `json:"kept"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

type SentinelState struct {
	Before       string `json:"before"`
	After        string `json:"after"`
	Written      bool   `json:"written"`
	WriteSkipped bool   `json:"writeSkipped"`
}

// RunSummary is the single structured record emitted at the end of a run.
type RunSummary struct {
	RunID          string               `json:"runId"`
	Status         RunStatus            `json:"status"`
	StartedAt      time.Time            `json:"startedAt"`
	FinishedAt     time.Time            `json:"finishedAt"`
	ExpectedLatest string               `json:"expectedLatest"`
	WindowStart    string               `json:"windowStart"`
	Periods        int                  `json:"periods"`
	Downloads      DownloadCounts       `json:"downloads"`
	FailedKeys     []string             `json:"failedKeys"`
	NotFoundKeys   []string             `json:"notFoundKeys"`
	PrunedLocal    int                  `json:"prunedLocal"`
	Consolidation  *ConsolidationResult `json:"consolidation,omitempty"`
	Sentinel       SentinelState        `json:"sentinel"`
	Sync           *SyncResult          `json:"sync,omitempty"`
	Error          string               `json:"error,omitempty"`
}

// DownloadProgressEvent is published as each key's outcome becomes final.
type DownloadProgressEvent struct {
	RunID     string          `json:"runId"`
	Key       string          `json:"key"`
	Outcome   DownloadOutcome `json:"outcome"`
	Completed int             `json:"completed"`
	Total     int             `json:"total"`
}

// RemoteObject is one entry in the remote store. ID is opaque to callers.
type RemoteObject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
