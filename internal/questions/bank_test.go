package questions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	data := []byte(`
questions:
  - text: "What does one plus one equal?"
    options: ["1", "2", "11"]
    correct_index: 1
  - text: "Pick b"
    options: ["a", "b"]
    correct_index: 1
    image: "https://example.com/b.png"
`)

	qs, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("Parse() returned %d questions, want 2", len(qs))
	}
	if qs[0].CorrectIndex != 1 || len(qs[0].Options) != 3 {
		t.Errorf("first question = %+v, want correct_index 1 with 3 options", qs[0])
	}
	if qs[1].Image == "" {
		t.Error("image field not parsed")
	}
}

func TestParseRejectsInvalidBanks(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "empty bank",
			data:    "questions: []",
			wantErr: "empty",
		},
		{
			name: "missing text",
			data: `
questions:
  - options: ["a", "b"]
    correct_index: 0
`,
			wantErr: "text",
		},
		{
			name: "too few options",
			data: `
questions:
  - text: "q"
    options: ["only"]
    correct_index: 0
`,
			wantErr: "options",
		},
		{
			name: "too many options",
			data: `
questions:
  - text: "q"
    options: ["a", "b", "c", "d", "e"]
    correct_index: 0
`,
			wantErr: "options",
		},
		{
			name: "correct index out of range",
			data: `
questions:
  - text: "q"
    options: ["a", "b"]
    correct_index: 2
`,
			wantErr: "correct_index",
		},
		{
			name:    "not yaml",
			data:    "{{nope",
			wantErr: "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	data := `
questions:
  - text: "q"
    options: ["a", "b"]
    correct_index: 0
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	qs, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(qs) != 1 {
		t.Errorf("Load() returned %d questions, want 1", len(qs))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing file) error = nil, want error")
	}
}

func TestDefaultBankIsValid(t *testing.T) {
	for i, q := range Default() {
		if err := validate(q); err != nil {
			t.Errorf("built-in question %d invalid: %v", i, err)
		}
	}
}
