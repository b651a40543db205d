// Package match turns transcribed utterances into trigger decisions.
//
// A Matcher holds a read-only trigger table (normalized phrase to shell
// command), scores transcripts against it with a pluggable similarity
// function, and enforces a score threshold plus a per-phrase cooldown so a
// single spoken phrase cannot fire its command in rapid succession.
//
// The matching pipeline is:
//
//  1. Normalize the transcript (see [Normalize]).
//  2. Drop multi-token phrases whose tokens are not all present in the
//     transcript. This cheap containment filter keeps "browser" from
//     matching "open browser"; single-token phrases are never filtered.
//  3. Score the surviving candidates and pick the best.
//  4. Accept only when the best score reaches the threshold and the phrase
//     is outside its cooldown window.
//
// The cooldown registry is mutated only on an accepted match, so near-miss
// repeats cannot extend a phrase's cooldown window.
package match

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"
)

const (
	defaultThreshold = 85
	defaultCooldown  = 4 * time.Second
	defaultMinChars  = 3
)

// Result describes an accepted trigger match. Score is on a 0-100 scale.
type Result struct {
	Phrase  string
	Command string
	Score   float64
}

// Scorer ranks candidate phrases against a normalized transcript and
// returns the best candidate with its 0-100 similarity score. candidates
// is sorted; implementations must be deterministic for equal scores.
type Scorer interface {
	BestOf(text string, candidates []string) (phrase string, score float64)
}

// LevenshteinScorer scores candidates by Levenshtein similarity ratio:
// 100 * (1 - distance/maxLen). Ties go to the lexicographically smallest
// candidate, which is first in the sorted candidate slice.
type LevenshteinScorer struct{}

var _ Scorer = LevenshteinScorer{}

// BestOf implements [Scorer].
func (LevenshteinScorer) BestOf(text string, candidates []string) (string, float64) {
	var (
		bestPhrase string
		bestScore  float64
	)
	for _, cand := range candidates {
		score := levenshteinRatio(text, cand)
		if bestPhrase == "" || score > bestScore {
			bestPhrase, bestScore = cand, score
		}
	}
	return bestPhrase, bestScore
}

func levenshteinRatio(a, b string) float64 {
	if a == b {
		return 100
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 100
	}
	dist := matchr.Levenshtein(a, b)
	return 100 * (1 - float64(dist)/float64(longest))
}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithThreshold sets the minimum 0-100 score required for a match.
// Default: 85.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// WithCooldown sets the minimum time between two firings of the same
// phrase. Default: 4s. A zero or negative cooldown disables suppression.
func WithCooldown(d time.Duration) Option {
	return func(m *Matcher) {
		m.cooldown = d
	}
}

// WithMinChars sets the minimum normalized transcript length considered
// for matching. Default: 3.
func WithMinChars(n int) Option {
	return func(m *Matcher) {
		m.minChars = n
	}
}

// WithTokenFilter enables or disables the token-containment candidate
// filter for multi-token phrases. Default: enabled.
func WithTokenFilter(enabled bool) Option {
	return func(m *Matcher) {
		m.tokenFilter = enabled
	}
}

// WithScorer replaces the similarity backend. Default: [LevenshteinScorer].
func WithScorer(s Scorer) Option {
	return func(m *Matcher) {
		m.scorer = s
	}
}

// WithClock replaces the time source used for cooldown bookkeeping.
// Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) {
		m.now = now
	}
}

// Matcher matches normalized transcripts against a trigger table.
// Match is safe for concurrent use; the trigger table itself is read-only
// after construction.
type Matcher struct {
	triggers    map[string]string
	tokens      map[string][]string
	phrases     []string
	threshold   float64
	cooldown    time.Duration
	minChars    int
	tokenFilter bool
	scorer      Scorer
	now         func() time.Time

	mu        sync.Mutex
	lastFired map[string]time.Time
}

// New builds a Matcher from a phrase-to-command table. Phrases are
// normalized before storage; two phrases that normalize identically
// collapse into one entry, with the lexicographically later original
// phrase supplying the command.
func New(triggers map[string]string, opts ...Option) *Matcher {
	m := &Matcher{
		triggers:    make(map[string]string, len(triggers)),
		tokens:      make(map[string][]string, len(triggers)),
		threshold:   defaultThreshold,
		cooldown:    defaultCooldown,
		minChars:    defaultMinChars,
		tokenFilter: true,
		scorer:      LevenshteinScorer{},
		now:         time.Now,
		lastFired:   make(map[string]time.Time),
	}
	for _, o := range opts {
		o(m)
	}

	keys := make([]string, 0, len(triggers))
	for phrase := range triggers {
		keys = append(keys, phrase)
	}
	slices.Sort(keys)
	for _, phrase := range keys {
		norm := Normalize(phrase)
		if norm == "" {
			continue
		}
		m.triggers[norm] = triggers[phrase]
		m.tokens[norm] = strings.Fields(norm)
	}
	m.phrases = make([]string, 0, len(m.triggers))
	for phrase := range m.triggers {
		m.phrases = append(m.phrases, phrase)
	}
	slices.Sort(m.phrases)
	return m
}

// Phrases returns the normalized trigger phrases in sorted order.
func (m *Matcher) Phrases() []string {
	return slices.Clone(m.phrases)
}

// Lookup resolves a phrase to its command after normalization. It performs
// no scoring and no cooldown bookkeeping; the control plane uses it for
// remote trigger requests.
func (m *Matcher) Lookup(phrase string) (command string, ok bool) {
	command, ok = m.triggers[Normalize(phrase)]
	return command, ok
}

// Match scores text against the trigger table and returns the accepted
// match, if any. The returned Result carries the best candidate and score
// even when matched is false, so callers can log near misses and
// cooldown-suppressed hits.
func (m *Matcher) Match(text string) (res Result, matched bool) {
	norm := Normalize(text)
	if len(norm) < m.minChars {
		return Result{}, false
	}

	candidates := m.candidates(norm)
	if len(candidates) == 0 {
		return Result{}, false
	}

	phrase, score := m.scorer.BestOf(norm, candidates)
	res = Result{Phrase: phrase, Command: m.triggers[phrase], Score: score}
	if score < m.threshold {
		return res, false
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.lastFired[phrase]; ok && m.cooldown > 0 && now.Sub(last) < m.cooldown {
		slog.Debug("trigger suppressed by cooldown",
			"phrase", phrase,
			"score", score,
			"since_last", now.Sub(last))
		return res, false
	}
	m.lastFired[phrase] = now
	return res, true
}

// candidates applies the token-containment filter. Multi-token phrases
// qualify only when every one of their tokens appears in the transcript;
// single-token phrases always qualify.
func (m *Matcher) candidates(norm string) []string {
	if !m.tokenFilter {
		return m.phrases
	}

	present := make(map[string]struct{})
	for _, tok := range strings.Fields(norm) {
		present[tok] = struct{}{}
	}

	out := make([]string, 0, len(m.phrases))
	for _, phrase := range m.phrases {
		toks := m.tokens[phrase]
		if len(toks) > 1 && !allPresent(toks, present) {
			continue
		}
		out = append(out, phrase)
	}
	return out
}

func allPresent(tokens []string, set map[string]struct{}) bool {
	for _, t := range tokens {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}
