package dispatch

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openoj/judgehub/internal/types"
)

func zipOf(t *testing.T, entries map[string][]byte) *bytes.Reader {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return bytes.NewReader(buf.Bytes())
}

// zeroes reads as an endless run of zero bytes, which deflate shrinks by
// orders of magnitude. Used to build small archives with huge contents.
type zeroes struct{}

func (zeroes) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func zipWithZeroes(t *testing.T, name string, n int64) *bytes.Reader {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = io.CopyN(f, zeroes{}, n)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return bytes.NewReader(buf.Bytes())
}

func TestValidateStandardArchive(t *testing.T) {
	ctx := context.Background()

	t.Run("AcceptsSingleMainEntry", func(t *testing.T) {
		r := zipOf(t, map[string][]byte{"main.c": []byte("int main() {}")})
		err := ValidateStandardArchive(ctx, r, r.Size(), types.LanguageC)
		assert.NoError(t, err)
	})

	t.Run("AcceptsMainEntryInSubdir", func(t *testing.T) {
		r := zipOf(t, map[string][]byte{"src/main.cpp": []byte("int main() {}")})
		err := ValidateStandardArchive(ctx, r, r.Size(), types.LanguageCPP)
		assert.NoError(t, err)
	})

	t.Run("RejectsMissingEntry", func(t *testing.T) {
		r := zipOf(t, map[string][]byte{"solution.c": []byte("int main() {}")})
		err := ValidateStandardArchive(ctx, r, r.Size(), types.LanguageC)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("RejectsWrongExtension", func(t *testing.T) {
		r := zipOf(t, map[string][]byte{"main.c": []byte("print('hi')")})
		err := ValidateStandardArchive(ctx, r, r.Size(), types.LanguagePython)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("RejectsDuplicateEntries", func(t *testing.T) {
		r := zipOf(t, map[string][]byte{
			"main.py":     []byte("print('hi')"),
			"sub/main.py": []byte("print('bye')"),
		})
		err := ValidateStandardArchive(ctx, r, r.Size(), types.LanguagePython)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("RejectsNonZip", func(t *testing.T) {
		r := bytes.NewReader([]byte("definitely not a zip"))
		err := ValidateStandardArchive(ctx, r, r.Size(), types.LanguageC)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("RejectsOversized", func(t *testing.T) {
		r := zipOf(t, map[string][]byte{"main.c": []byte("int main() {}")})
		err := ValidateStandardArchive(ctx, r, 11<<20, types.LanguageC)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("RejectsOversizedInflated", func(t *testing.T) {
		// compresses to a few kilobytes, inflates to 50MB
		r := zipWithZeroes(t, "main.c", 50<<20)
		err := ValidateStandardArchive(ctx, r, r.Size(), types.LanguageC)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("AcceptsRealPDF", func(t *testing.T) {
		r := zipOf(t, map[string][]byte{"main.pdf": []byte("%PDF-1.7 fake body")})
		err := ValidateStandardArchive(ctx, r, r.Size(), types.LanguagePDF)
		assert.NoError(t, err)
	})

	t.Run("RejectsFakePDF", func(t *testing.T) {
		r := zipOf(t, map[string][]byte{"main.pdf": []byte("<html>not a pdf</html>")})
		err := ValidateStandardArchive(ctx, r, r.Size(), types.LanguagePDF)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestValidateProjectArchive(t *testing.T) {
	ctx := context.Background()

	t.Run("AcceptsAnyLayout", func(t *testing.T) {
		r := zipOf(t, map[string][]byte{
			"Makefile":   []byte("all:"),
			"src/a.c":    []byte("int a;"),
			"src/b.c":    []byte("int b;"),
			"doc/readme": []byte("hi"),
		})
		err := ValidateProjectArchive(ctx, r, r.Size())
		assert.NoError(t, err)
	})

	t.Run("RejectsOversized", func(t *testing.T) {
		r := zipOf(t, map[string][]byte{"Makefile": []byte("all:")})
		err := ValidateProjectArchive(ctx, r, (1<<30)+1)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("RejectsOversizedInflated", func(t *testing.T) {
		r := zipWithZeroes(t, "data.bin", (1<<30)+1)
		err := ValidateProjectArchive(ctx, r, r.Size())
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("RejectsNonZip", func(t *testing.T) {
		r := bytes.NewReader([]byte("garbage"))
		err := ValidateProjectArchive(ctx, r, r.Size())
		assert.ErrorIs(t, err, ErrValidation)
	})
}
