package types

import "fmt"

// Numeric judge status codes. Higher code = worse outcome; this ordering is
// authoritative when aggregating case results into task and overall statuses.
const (
	// StatusUnknown marks a worker-reported status name we do not recognize.
	// It only appears during aggregation and is never sent by a worker.
	StatusUnknown int = -3
	// StatusPending means the submission record exists but was never dispatched.
	StatusPending int = -2
	// StatusJudging means the submission is dispatched and we are waiting on
	// the worker callback.
	StatusJudging int = -1

	StatusAccepted     int = 0
	StatusWrongAnswer  int = 1
	StatusCompileError int = 2
	StatusTimeLimit    int = 3
	StatusMemoryLimit  int = 4
	StatusRuntimeError int = 5
	StatusJudgeError   int = 6
	StatusOutputLimit  int = 7
)

var workerStatusCodes = map[string]int{
	"AC":  StatusAccepted,
	"WA":  StatusWrongAnswer,
	"CE":  StatusCompileError,
	"TLE": StatusTimeLimit,
	"MLE": StatusMemoryLimit,
	"RE":  StatusRuntimeError,
	"JE":  StatusJudgeError,
	"OLE": StatusOutputLimit,
}

var statusNames = map[int]string{
	StatusUnknown:      "Unknown",
	StatusPending:      "Pending",
	StatusJudging:      "Judging",
	StatusAccepted:     "Accepted",
	StatusWrongAnswer:  "Wrong Answer",
	StatusCompileError: "Compile Error",
	StatusTimeLimit:    "Time Limit Exceeded",
	StatusMemoryLimit:  "Memory Limit Exceeded",
	StatusRuntimeError: "Runtime Error",
	StatusJudgeError:   "Judge Error",
	StatusOutputLimit:  "Output Limit Exceeded",
}

// StatusFromWorker maps a worker-reported status name to the internal numeric
// code. Unrecognized names map to StatusUnknown with ok == false.
func StatusFromWorker(name string) (int, bool) {
	code, ok := workerStatusCodes[name]
	if !ok {
		return StatusUnknown, false
	}

	return code, true
}

func StatusName(code int) string {
	name, ok := statusNames[code]
	if !ok {
		return fmt.Sprintf("status(%d)", code)
	}

	return name
}
