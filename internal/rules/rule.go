package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/scan-io-git/sarifer/internal/findings"
)

// File is the on-disk layout of a rule definition file.
type File struct {
	Definitions []Definition `json:"definitions"`
}

// Definition is the serializable form of a rule. It is what crosses the worker boundary;
// the worker compiles its own copy.
type Definition struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	Level              string `json:"level,omitempty"`
	Message            string `json:"message,omitempty"`
	FileNameAllowRegex string `json:"fileNameAllowRegex,omitempty"`
	FileNameDenyRegex  string `json:"fileNameDenyRegex,omitempty"`
	ContentsRegex      string `json:"contentsRegex"`
}

// Rule is a compiled Definition.
type Rule struct {
	Definition

	level    findings.Level
	allow    *regexp.Regexp
	deny     *regexp.Regexp
	contents *regexp.Regexp
}

// ParseFile decodes a rule definition file.
func ParseFile(data []byte) ([]Definition, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode rule definitions: %w", err)
	}
	return f.Definitions, nil
}

// LoadFile reads and decodes a rule definition file from disk.
func LoadFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFile(data)
}

// Compile compiles every definition, failing on the first invalid one.
func Compile(defs []Definition) ([]*Rule, error) {
	compiled := make([]*Rule, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if _, ok := seen[d.ID]; ok {
			return nil, fmt.Errorf("duplicate rule id %q", d.ID)
		}
		r, err := CompileDefinition(d)
		if err != nil {
			return nil, err
		}
		seen[d.ID] = struct{}{}
		compiled = append(compiled, r)
	}
	return compiled, nil
}

// CompileDefinition validates and compiles a single definition.
func CompileDefinition(d Definition) (*Rule, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("rule definition is missing an id")
	}
	if d.ContentsRegex == "" {
		return nil, fmt.Errorf("rule %q: contentsRegex is required", d.ID)
	}

	r := &Rule{Definition: d, level: findings.ParseLevel(d.Level)}
	if r.Name == "" {
		r.Name = d.ID
	}

	var err error
	if r.contents, err = regexp.Compile(d.ContentsRegex); err != nil {
		return nil, fmt.Errorf("rule %q: failed to compile the regex %s: %w", d.ID, d.ContentsRegex, err)
	}
	if d.FileNameAllowRegex != "" {
		if r.allow, err = regexp.Compile(d.FileNameAllowRegex); err != nil {
			return nil, fmt.Errorf("rule %q: failed to compile the regex %s: %w", d.ID, d.FileNameAllowRegex, err)
		}
	}
	if d.FileNameDenyRegex != "" {
		if r.deny, err = regexp.Compile(d.FileNameDenyRegex); err != nil {
			return nil, fmt.Errorf("rule %q: failed to compile the regex %s: %w", d.ID, d.FileNameDenyRegex, err)
		}
	}
	return r, nil
}

// RuleID returns the rule identifier.
func (r *Rule) RuleID() string {
	return r.ID
}

// Level returns the level findings of this rule are reported with.
func (r *Rule) Level() findings.Level {
	return r.level
}

// AppliesTo reports whether the rule should run against target.
// Only the file name filters are consulted; the text is never scanned here.
func (r *Rule) AppliesTo(target string) bool {
	name := filepath.ToSlash(target)
	if r.allow != nil && !r.allow.MatchString(name) {
		return false
	}
	if r.deny != nil && r.deny.MatchString(name) {
		return false
	}
	return true
}

// Match runs the rule against text. Every match yields a fail finding; a rule that
// matches nothing yields a single pass finding for the target.
func (r *Rule) Match(target, text string, idx *LineIndex) []findings.Finding {
	matches := r.contents.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []findings.Finding{{
			RuleID:   r.ID,
			RuleName: r.Name,
			Kind:     findings.KindPass,
			Level:    findings.LevelNone,
			Message:  fmt.Sprintf("%s: no matches", r.Name),
			Target:   target,
		}}
	}

	out := make([]findings.Finding, 0, len(matches))
	for _, m := range matches {
		start, end := m[0], m[1]
		startLine, startCol := idx.Position(start)
		endLine, endCol := idx.Position(end)
		out = append(out, findings.Finding{
			RuleID:      r.ID,
			RuleName:    r.Name,
			Kind:        findings.KindFail,
			Level:       r.level,
			Message:     r.message(text, m),
			Target:      target,
			StartLine:   startLine,
			StartColumn: startCol,
			EndLine:     endLine,
			EndColumn:   endCol,
			Snippet:     text[start:end],
		})
	}
	return out
}

func (r *Rule) message(text string, submatches []int) string {
	if r.Message == "" {
		return fmt.Sprintf("%s: %q", r.Name, text[submatches[0]:submatches[1]])
	}
	return string(r.contents.ExpandString(nil, r.Message, text, submatches))
}
