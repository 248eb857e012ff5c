package filter

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/rs/zerolog"
)

// DefaultSimilarityThreshold is the Levenshtein similarity at or above which
// a transcript counts as a repeat of the previous one
const DefaultSimilarityThreshold = 0.90

// DefaultMaxSymbolRatio rejects transcripts that are mostly symbols
const DefaultMaxSymbolRatio = 0.5

// Outcome describes what the filter did with a transcript
type Outcome string

const (
	OutcomeAccepted      Outcome = "accepted"
	OutcomeEmpty         Outcome = "empty"
	OutcomeHallucination Outcome = "hallucination"
	OutcomeDuplicate     Outcome = "duplicate"
)

// Config holds configuration for the transcript filter
type Config struct {
	// Phrases are removed wherever they occur, ignoring case
	Phrases []string

	// Patterns are case-insensitive regular expressions removed from the text
	Patterns []string

	// SimilarityThreshold suppresses transcripts this similar to the
	// previous one. Zero uses DefaultSimilarityThreshold.
	SimilarityThreshold float64

	// MaxSymbolRatio rejects transcripts whose share of characters that are
	// not letters, digits or spaces exceeds it. Zero uses
	// DefaultMaxSymbolRatio; a negative value disables the check.
	MaxSymbolRatio float64

	Logger zerolog.Logger
}

// DefaultConfig returns the built-in deny-list and thresholds
func DefaultConfig() Config {
	return Config{
		Phrases:             append([]string(nil), DefaultPhrases...),
		Patterns:            append([]string(nil), DefaultPatterns...),
		SimilarityThreshold: DefaultSimilarityThreshold,
		MaxSymbolRatio:      DefaultMaxSymbolRatio,
		Logger:              zerolog.Nop(),
	}
}

// Filter removes hallucinated filler from transcripts and suppresses
// transcripts that repeat the previously accepted one
type Filter struct {
	deny      []*regexp.Regexp
	threshold float64
	maxSymbol float64
	log       zerolog.Logger

	mu   sync.Mutex
	last string
}

// New compiles the deny-list
func New(config Config) (*Filter, error) {
	f := &Filter{
		threshold: config.SimilarityThreshold,
		maxSymbol: config.MaxSymbolRatio,
		log:       config.Logger,
	}
	if f.threshold <= 0 {
		f.threshold = DefaultSimilarityThreshold
	}
	if f.threshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be at most 1, got %.2f", f.threshold)
	}
	if f.maxSymbol == 0 {
		f.maxSymbol = DefaultMaxSymbolRatio
	}

	for _, p := range config.Phrases {
		if strings.TrimSpace(p) == "" {
			continue
		}
		f.deny = append(f.deny, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(p)+`[.!?。]*`))
	}
	for _, p := range config.Patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", p, err)
		}
		f.deny = append(f.deny, re)
	}
	return f, nil
}

// Apply cleans text and decides whether it should be dispatched. The
// returned text is only meaningful for OutcomeAccepted, in which case it
// also becomes the reference for the next duplicate check.
func (f *Filter) Apply(text string) (string, Outcome) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", OutcomeEmpty
	}

	cleaned := f.stripHallucinations(text)
	cleaned = collapseRepeats(cleaned)
	if !hasContent(cleaned) {
		f.log.Info().Str("text", text).Msg("filtered hallucinated transcript")
		return "", OutcomeHallucination
	}
	if f.maxSymbol > 0 {
		if ratio := symbolRatio(cleaned); ratio > f.maxSymbol {
			f.log.Info().Str("text", text).Float64("ratio", ratio).Msg("filtered symbol-heavy transcript")
			return "", OutcomeHallucination
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.isDuplicate(cleaned) {
		f.log.Info().Str("text", cleaned).Str("previous", f.last).Msg("suppressed duplicate transcript")
		return "", OutcomeDuplicate
	}
	f.last = cleaned
	return cleaned, OutcomeAccepted
}

func (f *Filter) isDuplicate(text string) bool {
	prev := f.last
	if prev == "" {
		return false
	}
	if text == prev {
		return true
	}

	a, b := Normalize(text), Normalize(prev)
	if a == b {
		return true
	}
	if containsWords(a, b) || containsWords(b, a) {
		return true
	}
	return Similarity(a, b) >= f.threshold
}

// Last returns the previously accepted transcript
func (f *Filter) Last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Reset forgets the previously accepted transcript
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = ""
}

func (f *Filter) stripHallucinations(text string) string {
	for _, re := range f.deny {
		if re.MatchString(text) {
			f.log.Debug().Str("pattern", re.String()).Msg("removed hallucination pattern")
			text = re.ReplaceAllString(text, " ")
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

// collapseRepeats keeps one copy of any word repeated three or more times
// in a row
func collapseRepeats(text string) string {
	words := strings.Fields(text)
	if len(words) < 3 {
		return text
	}

	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		j := i + 1
		for j < len(words) && strings.EqualFold(words[j], words[i]) {
			j++
		}
		if j-i >= 3 {
			out = append(out, words[i])
		} else {
			out = append(out, words[i:j]...)
		}
		i = j
	}
	return strings.Join(out, " ")
}

func hasContent(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func symbolRatio(text string) float64 {
	total, symbols := 0, 0
	for _, r := range text {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			symbols++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(symbols) / float64(total)
}
