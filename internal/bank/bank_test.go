package bank

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBank(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	assert.Len(t, b.Questions("python"), 20)
	assert.Len(t, b.Questions(GenericTag), 15)
	assert.Len(t, b.Management(), 75)
	assert.Equal(t, []string{
		"python", "java", "spring", "javascript", "sql", "html", "css",
		"data structures", "algorithms", "problem solving", "communication", "teamwork",
	}, b.Tags())
	assert.Nil(t, b.Questions("cobol"))
}

func TestCategoriesMatching(t *testing.T) {
	b := MustDefault()

	tests := []struct {
		name  string
		skill string
		want  []string
	}{
		{"exact", "python", []string{"python"}},
		{"case insensitive", "PyThOn", []string{"python"}},
		{"tag inside skill", "spring boot", []string{"spring"}},
		{"short tag inside longer skill", "postgresql", []string{"sql"}},
		{"skill inside tag", "java", []string{"java", "javascript"}},
		{"skill inside multi-word tag", "structures", []string{"data structures"}},
		{"no match", "obscurelang", nil},
		{"substring false positive kept", "c", []string{"javascript", "css", "data structures", "communication"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.CategoriesMatching(tt.skill))
		})
	}
}

func TestQuestionsReturnsCopy(t *testing.T) {
	b := MustDefault()
	qs := b.Questions("python")
	qs[0] = "mutated"
	assert.NotEqual(t, "mutated", b.Questions("python")[0])

	m := b.Management()
	m[0] = "mutated"
	assert.NotEqual(t, "mutated", b.Management()[0])
}

func TestParse(t *testing.T) {
	t.Run("normalizes tags and drops blanks", func(t *testing.T) {
		b, err := Parse([]byte(`
technical:
  - tag: " Go "
    questions: ["What is a goroutine?", "  "]
management: ["Tell me about a conflict.", ""]
`))
		require.NoError(t, err)
		assert.Equal(t, []string{"go"}, b.Tags())
		assert.Equal(t, []string{"What is a goroutine?"}, b.Questions("GO"))
		assert.Equal(t, []string{"Tell me about a conflict."}, b.Management())
		assert.Equal(t, 2, b.Size())
	})

	t.Run("duplicate tag", func(t *testing.T) {
		_, err := Parse([]byte("technical:\n  - tag: go\n  - tag: GO\n"))
		assert.Error(t, err)
	})

	t.Run("empty tag", func(t *testing.T) {
		_, err := Parse([]byte("technical:\n  - questions: [a]\n"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Parse([]byte("technical: [\n"))
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	require.NoError(t, os.WriteFile(path, []byte("management: [\"Why us?\"]\n"), 0o600))

	b, sum, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Why us?"}, b.Management())
	// sha256 of the file bytes above.
	assert.Len(t, sum, 64)

	_, again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sum, again)

	b, embedded, err := Load("")
	require.NoError(t, err)
	assert.Greater(t, b.Size(), 200)
	assert.Len(t, embedded, 64)
	assert.NotEqual(t, sum, embedded)

	require.NoError(t, os.WriteFile(path, []byte("management: [\"Why them?\"]\n"), 0o600))
	_, changed, err := Load(path)
	require.NoError(t, err)
	assert.NotEqual(t, sum, changed)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
