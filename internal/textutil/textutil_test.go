package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "folds case and drops stop words",
			in:   "Must have experience with LLMs, Python, and Vector DBs.",
			want: []string{"experience", "llm", "python", "vector", "dbs"},
		},
		{
			name: "keeps symbols that belong to tech names",
			in:   "C++ and C# on Node.js",
			want: []string{"c++", "node", "js"},
		},
		{
			name: "drops numbers and single letters",
			in:   "5 years of R in 2021",
			want: []string{},
		},
		{
			name: "empty",
			in:   "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestTokenSet(t *testing.T) {
	set := TokenSet("React Native", "react, Firebase")
	assert.Equal(t, 3, set.Cardinality())
	assert.True(t, set.Contains("react"))
	assert.True(t, set.Contains("native"))
	assert.True(t, set.Contains("firebase"))
}

func TestTopKeywords(t *testing.T) {
	text := "Python services. Python tooling for Kubernetes. Kubernetes operators in Go. Python again."

	assert.Equal(t, []string{"python", "kubernete"}, TopKeywords(text, 2))
	assert.Equal(t, []string{"python", "kubernete", "service", "tooling", "operator"}, TopKeywords(text, 5))
	assert.Nil(t, TopKeywords(text, 0))
	assert.Empty(t, TopKeywords("", 5))
}
