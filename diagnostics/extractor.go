// Package diagnostics turns the raw replies of a diagnostics batch into
// structured fields using ordered, data-driven regex rules. A field with no
// matching rule keeps its default.
package diagnostics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/nanoncore/nano-onulocator/logging"
	"github.com/nanoncore/nano-onulocator/types"
)

// Extractor applies Rules to reply sets. Compiled patterns are cached; an
// Extractor is safe for concurrent use.
type Extractor struct {
	rules Rules

	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

// NewExtractor validates every pattern of rules and returns an extractor
func NewExtractor(rules Rules) (*Extractor, error) {
	e := &Extractor{rules: rules, cache: make(map[string]*regexp.Regexp)}

	for _, list := range e.lists() {
		for _, r := range list {
			sample := strings.ReplaceAll(r.Pattern, InterfacePlaceholder, "x")
			if _, err := regexp.Compile(sample); err != nil {
				return nil, fmt.Errorf("invalid diagnostics rule %q for %s: %w", r.Pattern, r.Key, err)
			}
		}
	}
	return e, nil
}

// Default returns an extractor over DefaultRules
func Default() *Extractor {
	e, err := NewExtractor(DefaultRules())
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Extractor) lists() [][]Rule {
	r := e.rules
	return [][]Rule{r.Status, r.Name, r.Distance, r.Uptime, r.RxONU, r.TxONU, r.RxOLT, r.TxOLT}
}

// Extract fills diagnostics for the terminal behind iface from replies.
// Status description and color are left for the classifier.
func (e *Extractor) Extract(iface string, replies []types.Reply) types.Diagnostics {
	d := types.NewDiagnostics()

	byKey := make(map[string]string, len(replies))
	for _, r := range replies {
		byKey[r.Key] = r.Output
	}
	short := strings.TrimPrefix(iface, "gpon-onu_")

	if v, ok := e.text(e.rules.Status, byKey, short); ok {
		d.Status = v
	}
	if v, ok := e.text(e.rules.Name, byKey, short); ok {
		d.Name = v
	}
	if v, ok := e.text(e.rules.Distance, byKey, short); ok {
		d.Distance = v
	}
	if v, ok := e.text(e.rules.Uptime, byKey, short); ok {
		d.Uptime = v
	}

	d.Signals.RxONU = e.level(e.rules.RxONU, byKey, short)
	d.Signals.TxONU = e.level(e.rules.TxONU, byKey, short)
	d.Signals.RxOLT = e.level(e.rules.RxOLT, byKey, short)
	d.Signals.TxOLT = e.level(e.rules.TxOLT, byKey, short)

	return d
}

func (e *Extractor) text(rules []Rule, byKey map[string]string, short string) (string, bool) {
	for _, v := range e.captures(rules, byKey, short) {
		if v = strings.TrimSpace(v); v != "" {
			return v, true
		}
	}
	return "", false
}

func (e *Extractor) level(rules []Rule, byKey map[string]string, short string) float64 {
	for _, v := range e.captures(rules, byKey, short) {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f
		}
	}
	return types.OpticalSentinel
}

// captures returns the first capture of every matching rule, in rule order
func (e *Extractor) captures(rules []Rule, byKey map[string]string, short string) []string {
	var out []string
	for _, r := range rules {
		output, ok := byKey[r.Key]
		if !ok || output == "" {
			continue
		}
		re, err := e.compile(r.Pattern, short)
		if err != nil {
			logging.WithFields(map[string]interface{}{"pattern": r.Pattern}).WithError(err).Debug("skipping rule")
			continue
		}
		if m := re.FindStringSubmatch(output); len(m) > 1 {
			out = append(out, m[1])
		}
	}
	return out
}

func (e *Extractor) compile(pattern, short string) (*regexp.Regexp, error) {
	if strings.Contains(pattern, InterfacePlaceholder) {
		if short == "" {
			return nil, fmt.Errorf("pattern needs an interface")
		}
		pattern = strings.ReplaceAll(pattern, InterfacePlaceholder, regexp.QuoteMeta(short))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if re, ok := e.cache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e.cache[pattern] = re
	return re, nil
}
