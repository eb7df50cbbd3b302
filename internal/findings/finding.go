package findings

import "strings"

// Kind distinguishes a violation from an explicit "rule evaluated and passed" result.
type Kind string

const (
	KindFail Kind = "fail"
	KindPass Kind = "pass"
)

// Level is the severity of a finding, using the SARIF level vocabulary.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
	LevelNone    Level = "none"
)

// ParseLevel maps a case-insensitive level name to a Level, defaulting to warning.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelError:
		return LevelError
	case LevelNote:
		return LevelNote
	case LevelNone:
		return LevelNone
	default:
		return LevelWarning
	}
}

// Finding is one diagnostic emitted by a rule against a target.
// Values are passed by copy across the worker boundary and never modified afterwards.
type Finding struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Kind     Kind   `json:"kind"`
	Level    Level  `json:"level"`
	Message  string `json:"message"`

	Target      string `json:"target"`
	StartLine   int    `json:"start_line"`
	StartColumn int    `json:"start_column"`
	EndLine     int    `json:"end_line"`
	EndColumn   int    `json:"end_column"`
	Snippet     string `json:"snippet,omitempty"`
}

// HasRegion reports whether the finding points at a text range.
func (f Finding) HasRegion() bool {
	return f.StartLine > 0
}
