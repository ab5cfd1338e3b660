package moderation

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed wordlist.yaml
var defaultWordlist []byte

type wordlistFile struct {
	Categories []wordlistCategory `yaml:"categories"`
}

type wordlistCategory struct {
	Name   string   `yaml:"name"`
	Reason string   `yaml:"reason"`
	Words  []string `yaml:"words"`

	pattern *regexp.Regexp
}

// WordlistOracle flags text containing any listed word or phrase as a whole
// word, case-insensitively. Categories are checked in file order.
type WordlistOracle struct {
	categories []wordlistCategory
}

// NewWordlistOracle parses data, or the embedded default list when data is empty.
func NewWordlistOracle(data []byte) (*WordlistOracle, error) {
	if len(data) == 0 {
		data = defaultWordlist
	}
	var f wordlistFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal word list: %w", err)
	}
	out := make([]wordlistCategory, 0, len(f.Categories))
	for _, c := range f.Categories {
		if len(c.Words) == 0 {
			continue
		}
		alts := make([]string, 0, len(c.Words))
		for _, w := range c.Words {
			w = strings.TrimSpace(w)
			if w == "" {
				continue
			}
			alts = append(alts, strings.Join(strings.Fields(regexp.QuoteMeta(w)), `\s+`))
		}
		if len(alts) == 0 {
			continue
		}
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("failed to compile category %q: %w", c.Name, err)
		}
		c.pattern = re
		if c.Reason == "" {
			c.Reason = c.Name
		}
		out = append(out, c)
	}
	return &WordlistOracle{categories: out}, nil
}

// LoadWordlistOracle reads a YAML word list from path.
func LoadWordlistOracle(path string) (*WordlistOracle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}
	return NewWordlistOracle(data)
}

func (o *WordlistOracle) Moderate(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	for _, c := range o.categories {
		if c.pattern.MatchString(text) {
			return Result{IsProfane: true, Reason: c.Reason}, nil
		}
	}
	return Result{IsProfane: false, Reason: "no listed words found"}, nil
}
