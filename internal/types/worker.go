package types

// WorkerStatus is the body of a worker's GET /status probe response.
type WorkerStatus struct {
	Version string `json:"version"`
	Load    int    `json:"load"`
	Ready   bool   `json:"ready"`
}

// SubmitOutcome is the decoded immediate response of POST {worker}/submit/{id},
// decoded exactly once at the HTTP boundary.
type SubmitOutcome int

const (
	SubmitOK SubmitOutcome = iota
	SubmitQueueFull
	SubmitBadRequest
	SubmitInvalidToken
	SubmitFailed
)

func (o SubmitOutcome) String() string {
	switch o {
	case SubmitOK:
		return "ok"
	case SubmitQueueFull:
		return "queue_full"
	case SubmitBadRequest:
		return "bad_request"
	case SubmitInvalidToken:
		return "invalid_token"
	default:
		return "failed"
	}
}
