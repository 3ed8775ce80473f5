// Package questions loads and validates the static question bank a match is
// created from.
package questions

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quizbattle/quizbattle/internal/models"
)

const (
	minOptions = 2
	maxOptions = 4
)

type bankFile struct {
	Questions []models.Question `yaml:"questions"`
}

// Load reads a YAML question bank from disk.
func Load(path string) ([]models.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML question bank.
func Parse(data []byte) ([]models.Question, error) {
	var file bankFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	if len(file.Questions) == 0 {
		return nil, fmt.Errorf("question bank is empty")
	}
	for i, q := range file.Questions {
		if err := validate(q); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
	}
	return file.Questions, nil
}

func validate(q models.Question) error {
	if q.Text == "" {
		return fmt.Errorf("text is empty")
	}
	if len(q.Options) < minOptions || len(q.Options) > maxOptions {
		return fmt.Errorf("want %d-%d options, got %d", minOptions, maxOptions, len(q.Options))
	}
	for i, opt := range q.Options {
		if opt == "" {
			return fmt.Errorf("option %d is empty", i)
		}
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("correct_index %d out of range", q.CorrectIndex)
	}
	return nil
}

// Default returns a small built-in bank used when no file is configured.
func Default() []models.Question {
	return []models.Question{
		{
			Text:         "What does one plus one equal?",
			Options:      []string{"1", "2", "11", "depends"},
			CorrectIndex: 1,
		},
		{
			Text:         "Why did the chicken cross the road?",
			Options:      []string{"Looking for food", "Looking for signal", "To get to the other side", "Walks are healthy"},
			CorrectIndex: 2,
		},
		{
			Text:         "What happens when a cat falls off a table?",
			Options:      []string{"The table breaks", "The cat flies", "The cat lands gracefully", "The cat posts about it"},
			CorrectIndex: 2,
		},
	}
}
