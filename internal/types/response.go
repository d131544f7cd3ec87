package types

type SubmissionCreatedResponse struct {
	SubmissionID string `json:"submission_id"`
	Status       int    `json:"status"`
}

// CaseOutputView is one judged case's captured output, decoded from its
// stored bundle for display.
type CaseOutputView struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	OutputURL string `json:"output_url,omitempty"`
	Task      int    `json:"task"`
	Case      int    `json:"case"`
}

type SubmissionResponse struct {
	SubmissionID string `json:"submission_id"`
	Kind         string `json:"kind"`
	Language     string `json:"language"`
	Status       int    `json:"status"`
	Score        int    `json:"score"`
	ExecTimeMS   int64  `json:"exec_time"`
	MemoryKB     int64  `json:"memory_usage"`

	Tasks []TaskResult `json:"tasks"`

	CheckerSummary  string `json:"checker_summary,omitempty"`
	AnalysisOutcome string `json:"analysis_outcome,omitempty"`
	AnalysisMessage string `json:"analysis_message,omitempty"`
	ScorerMessage   string `json:"scorer_message,omitempty"`

	ScorerBreakdown map[string]int `json:"scorer_breakdown,omitempty"`

	// Populated only for callers holding the matching capability.
	Outputs []CaseOutputView `json:"outputs,omitempty"`
	CodeURL string           `json:"code_url,omitempty"`
}

// ArtifactStoredResponse acknowledges a worker artifact upload with the
// content-addressed path the bytes landed at.
type ArtifactStoredResponse struct {
	Path string `json:"path"`
}
