package models

// Question is one entry of a match's fixed question list. Immutable once
// the match is created.
type Question struct {
	Text         string   `json:"text" yaml:"text"`
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"correct_index" yaml:"correct_index"`
	Image        string   `json:"image,omitempty" yaml:"image,omitempty"`
}
