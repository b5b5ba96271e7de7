package assessment

import "time"

// RiskScore is a bounded heuristic computed locally from an AnswerSet.
type RiskScore struct {
	Value    float64 `json:"value"`
	Max      float64 `json:"max"`
	Category string  `json:"category,omitempty"`
	Advice   string  `json:"advice,omitempty"`
}

// Prediction is what a hosted classifier or report endpoint returns.
type Prediction struct {
	Label      string  `json:"label,omitempty"`
	Confidence float64 `json:"confidence"` // percent, 0-100
}

// ReportID identifier type
type ReportID string

// Report is the rendered output of one remote call for one AnswerSet/profile.
type Report struct {
	ID         ReportID    `json:"id"`
	Tool       string      `json:"tool"`
	Raw        string      `json:"raw"`
	HTML       string      `json:"html"`
	Theme      string      `json:"theme"`
	Score      *RiskScore  `json:"score,omitempty"`
	Prediction *Prediction `json:"prediction,omitempty"`
	Model      string      `json:"model,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// RunStatus enum
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// Run is the anonymous ledger entry of one report generation. It never
// carries answers or profile data.
type Run struct {
	ID         string    `json:"id"`
	Tool       string    `json:"tool"`
	Kind       string    `json:"kind"`
	Score      *float64  `json:"score,omitempty"`
	Category   string    `json:"category,omitempty"`
	Status     RunStatus `json:"status"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// RunSummary aggregates runs of one tool (or all tools) over a window.
type RunSummary struct {
	Tool      string  `json:"tool,omitempty"`
	SinceDays int     `json:"since_days"`
	Total     int     `json:"total"`
	Failed    int     `json:"failed"`
	AvgScore  float64 `json:"avg_score"`
}
