package capability

import (
	"strconv"
	"strings"
)

// Set is a bit-flag permission set computed for an (actor, submission) pair.
type Set uint8

const (
	View Set = 1 << iota
	Upload
	Feedback
	Comment
	Rejudge
	Grade
	ViewOutput
)

// Everything a grader in the owning group may do.
const ManagerSet = View | Upload | Feedback | Comment | Rejudge | Grade | ViewOutput

// What the submission's author may do. ViewOutput is granted separately
// when the status allows it.
const AuthorSet = View | Upload | Feedback

func (s Set) Has(flag Set) bool {
	return s&flag == flag
}

func (s Set) String() string {
	if s == 0 {
		return "none"
	}

	names := []struct {
		flag Set
		name string
	}{
		{View, "view"},
		{Upload, "upload"},
		{Feedback, "feedback"},
		{Comment, "comment"},
		{Rejudge, "rejudge"},
		{Grade, "grade"},
		{ViewOutput, "view_output"},
	}

	parts := make([]string, 0, len(names))
	for _, n := range names {
		if s.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

func (s Set) encode() string {
	return strconv.FormatUint(uint64(s), 10)
}

func decode(raw string) (Set, bool) {
	v, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, false
	}
	return Set(v), true
}
