package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	"github.com/openoj/judgehub/internal/types"
)

func TestSubmissionPaths(t *testing.T) {
	submission := Submission{
		CodePath:          "code-blob",
		BinaryPath:        "binary-blob",
		CustomInputPath:   "input-blob",
		CheckerReportPath: "checker-blob",
		Tasks: datatypes.NewJSONSlice([]types.TaskResult{
			{Cases: []types.CaseResult{
				{OutputPath: "case-blob"},
				{}, // no stored output
			}},
		}),
	}

	t.Run("ResultPathsExcludesInputs", func(t *testing.T) {
		paths := submission.ResultPaths()
		assert.ElementsMatch(t, []string{"case-blob", "checker-blob"}, paths)
	})

	t.Run("AllPathsIncludesEveryBlob", func(t *testing.T) {
		paths := submission.AllPaths()
		assert.ElementsMatch(
			t,
			[]string{"case-blob", "checker-blob", "code-blob", "input-blob", "binary-blob"},
			paths,
		)
	})

	t.Run("AllPathsSkipsEmpty", func(t *testing.T) {
		paths := Submission{CodePath: "code-blob"}.AllPaths()
		assert.ElementsMatch(t, []string{"code-blob"}, paths)
	})
}
