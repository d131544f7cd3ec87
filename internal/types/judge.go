package types

type (
	// CaseWire is a single case result as reported by the worker callback.
	CaseWire struct {
		Stdout     *string `json:"stdout"`
		Stderr     *string `json:"stderr"`
		ExitCode   *int    `json:"exit_code,omitempty"` // transport only, dropped during ingestion
		Status     string  `json:"status"                validate:"required"`
		ExecTimeMS int64   `json:"exec_time"`
		MemoryKB   int64   `json:"memory_usage"`
	}

	// AnalysisWire carries the static-analysis section of a callback. Exactly
	// one of Report (inline text) and ReportPath (already stored) may be set.
	AnalysisWire struct {
		Report     *string `json:"report,omitempty"`
		ReportPath *string `json:"report_path,omitempty"`
		Outcome    string  `json:"outcome"               validate:"required,oneof=skip pass fail"`
		Message    string  `json:"message"`
	}

	CheckerEntryWire struct {
		Case    int    `json:"case"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}

	CheckerWire struct {
		Report     *string            `json:"report,omitempty"`
		ReportPath *string            `json:"report_path,omitempty"`
		Cases      []CheckerEntryWire `json:"cases"`
	}

	// ScoringWire is an optional custom-scorer section. A non-nil Score
	// replaces the computed task-score sum outright.
	ScoringWire struct {
		Score      *int           `json:"score,omitempty"`
		Report     *string        `json:"report,omitempty"`
		ReportPath *string        `json:"report_path,omitempty"`
		Message    string         `json:"message"`
		Breakdown  map[string]int `json:"breakdown,omitempty"`
	}

	// ResultPayload is the body of the worker's result callback.
	ResultPayload struct {
		Analysis       *AnalysisWire `json:"static_analysis,omitempty"`
		Checker        *CheckerWire  `json:"checker,omitempty"`
		Scoring        *ScoringWire  `json:"scoring,omitempty"`
		StatusOverride *int          `json:"status_override,omitempty"`
		Token          string        `json:"token"                     validate:"required"`
		Tasks          [][]CaseWire  `json:"tasks"                     validate:"required"`
	}
)

type (
	// CaseResult is the durable per-case record. Captured output lives in the
	// artifact store at OutputPath, never inline.
	CaseResult struct {
		OutputPath string `json:"output_path,omitempty"`
		Status     int    `json:"status"`
		ExecTimeMS int64  `json:"exec_time"`
		MemoryKB   int64  `json:"memory_usage"`
	}

	TaskResult struct {
		Cases      []CaseResult `json:"cases"`
		Status     int          `json:"status"`
		Score      int          `json:"score"`
		ExecTimeMS int64        `json:"exec_time"`
		MemoryKB   int64        `json:"memory_usage"`
	}
)
