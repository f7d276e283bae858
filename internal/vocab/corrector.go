// Package vocab applies a user's vocabulary corrections to finished
// transcripts. A corrections file holds one rule per line:
//
//	# comment
//	deep gram => Deepgram
//	s/\bk8s\b/Kubernetes/g
//
// Literal rules match whole words, ignoring case. Regex rules use sed syntax
// with any non-alphanumeric delimiter and the flags i, g, m and s; they are
// case-insensitive unless the pattern says otherwise.
package vocab

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

const DefaultIterationLimit = 30

type rule interface {
	apply(text string) string
}

// Corrector rewrites text until no rule changes it or the iteration limit
// is reached.
type Corrector struct {
	rules []rule
	limit int
	log   zerolog.Logger
}

// Load reads a corrections file. A missing or unset path yields a corrector
// with no rules.
func Load(path string, limit int, logger zerolog.Logger) (*Corrector, error) {
	c := &Corrector{limit: limit, log: logger.With().Str("component", "vocab").Logger()}
	if c.limit <= 0 {
		c.limit = DefaultIterationLimit
	}
	if strings.TrimSpace(path) == "" {
		return c, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read corrections file %q: %w", path, err)
	}
	defer f.Close()

	rules, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse corrections file %q: %w", path, err)
	}
	c.rules = rules
	c.log.Debug().Str("path", path).Int("rules", len(rules)).Msg("corrections loaded")
	return c, nil
}

// Parse builds a corrector from rules text.
func Parse(r io.Reader, limit int) (*Corrector, error) {
	rules, err := parse(r)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultIterationLimit
	}
	return &Corrector{rules: rules, limit: limit, log: zerolog.Nop()}, nil
}

// Len reports how many rules are loaded.
func (c *Corrector) Len() int { return len(c.rules) }

// Apply implements ports.TranscriptCorrector.
func (c *Corrector) Apply(text string) (string, error) {
	if len(c.rules) == 0 {
		return text, nil
	}

	current := text
	for pass := 0; pass < c.limit; pass++ {
		next := current
		for _, r := range c.rules {
			next = r.apply(next)
		}
		if next == current {
			return current, nil
		}
		current = next
	}
	c.log.Warn().Int("limit", c.limit).Msg("corrections did not settle; rules may form a cycle")
	return current, nil
}

func parse(r io.Reader) ([]rule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rules []rule
	for n, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var (
			parsed rule
			err    error
		)
		switch {
		case isSedRule(line):
			parsed, err = parseSed(line)
		case strings.Contains(line, "=>"):
			parsed, err = parseWord(line)
		default:
			err = errors.New("expected \"from => to\" or s/pattern/replacement/flags")
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		rules = append(rules, parsed)
	}
	return rules, nil
}

type wordRule struct {
	re *regexp.Regexp
	to string
}

func parseWord(line string) (rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" {
		return nil, errors.New("correction source cannot be empty")
	}

	pattern := regexp.QuoteMeta(from)
	if isWordByte(from[0]) {
		pattern = `\b` + pattern
	}
	if isWordByte(from[len(from)-1]) {
		pattern += `\b`
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid correction source: %w", err)
	}
	return wordRule{re: re, to: to}, nil
}

func (r wordRule) apply(text string) string {
	return r.re.ReplaceAllLiteralString(text, r.to)
}

type sedRule struct {
	re     *regexp.Regexp
	repl   string
	global bool
}

func parseSed(line string) (rule, error) {
	delim := line[1]
	fields, rest, err := splitDelimited(line[2:], delim, 2)
	if err != nil {
		return nil, err
	}

	flags := "i"
	global := false
	for _, f := range strings.TrimSpace(rest) {
		switch f {
		case 'g':
			global = true
		case 'i':
		case 'm', 's':
			flags += string(f)
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", f)
		}
	}

	re, err := regexp.Compile("(?" + flags + ")" + fields[0])
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return sedRule{re: re, repl: fields[1], global: global}, nil
}

func (r sedRule) apply(text string) string {
	if r.global {
		return r.re.ReplaceAllString(text, r.repl)
	}
	m := r.re.FindStringSubmatchIndex(text)
	if m == nil {
		return text
	}
	var out []byte
	out = r.re.ExpandString(out, r.repl, text, m)
	return text[:m[0]] + string(out) + text[m[1]:]
}

// splitDelimited reads n delim-terminated fields from s. A backslash keeps the
// next byte; "\/" becomes "/" when / is the delimiter, other escapes are left
// for the regexp parser.
func splitDelimited(s string, delim byte, n int) ([]string, string, error) {
	fields := make([]string, 0, n)
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\\' && i+1 < len(s) {
			if s[i+1] != delim {
				b.WriteByte(ch)
			}
			b.WriteByte(s[i+1])
			i++
			continue
		}
		if ch == delim {
			fields = append(fields, b.String())
			b.Reset()
			if len(fields) == n {
				return fields, s[i+1:], nil
			}
			continue
		}
		b.WriteByte(ch)
	}
	return nil, "", errors.New("unterminated expression")
}

func isSedRule(line string) bool {
	return len(line) > 2 && line[0] == 's' && !isWordByte(line[1]) && line[1] != ' ' && line[1] != '\t'
}

func isWordByte(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
