package clustering

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Options controls label generation.
type Options struct {
	// BroadThreshold marks thresholds below it as a broad view, which relaxes
	// the shared-token requirement to two titles.
	BroadThreshold float64
	// SampleSize is how many member titles are inspected for shared tokens.
	SampleSize int
	// MaxTokens is how many shared tokens make up a label.
	MaxTokens int
	// MaxLength truncates fallback title labels.
	MaxLength int
}

// DefaultOptions returns the default label options.
func DefaultOptions() Options {
	return Options{
		BroadThreshold: 0.6,
		SampleSize:     10,
		MaxTokens:      3,
		MaxLength:      60,
	}
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "shall": true, "can": true,
	"this": true, "that": true, "these": true, "those": true,
	"and": true, "or": true, "but": true, "if": true, "then": true, "not": true,
	"for": true, "from": true, "with": true, "about": true, "into": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "by": true,
	"it": true, "its": true, "which": true, "who": true, "what": true,
	"when": true, "where": true, "how": true, "why": true, "via": true,
	"all": true, "any": true, "more": true, "some": true, "new": true,
	"our": true, "your": true, "their": true, "you": true, "they": true,
}

// Label derives a display name from member titles in member order.
func Label(titles []string, broad bool, opts Options) string {
	if len(titles) == 0 {
		return ""
	}
	if len(titles) == 1 {
		return titles[0]
	}

	sample := titles
	if opts.SampleSize > 0 && len(sample) > opts.SampleSize {
		sample = sample[:opts.SampleSize]
	}

	freq := make(map[string]int)
	order := make([]string, 0)
	for _, title := range sample {
		seen := make(map[string]bool)
		for _, tok := range Tokenize(title) {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			if freq[tok] == 0 {
				order = append(order, tok)
			}
			freq[tok]++
		}
	}

	minCount := (len(sample) + 1) / 2
	if broad {
		minCount = 2
	}

	shared := make([]string, 0, len(order))
	for _, tok := range order {
		if freq[tok] >= minCount {
			shared = append(shared, tok)
		}
	}
	sort.SliceStable(shared, func(i, j int) bool { return freq[shared[i]] > freq[shared[j]] })

	if len(shared) > 0 {
		if opts.MaxTokens > 0 && len(shared) > opts.MaxTokens {
			shared = shared[:opts.MaxTokens]
		}
		for i, tok := range shared {
			shared[i] = capitalize(tok)
		}
		return strings.Join(shared, " & ")
	}

	rep := titles[0]
	if broad {
		for _, t := range sample {
			if utf8.RuneCountInString(t) > utf8.RuneCountInString(rep) {
				rep = t
			}
		}
	}
	return fmt.Sprintf("%s (+%d more)", truncate(rep, opts.MaxLength), len(titles)-1)
}

// Tokenize lowercases text and returns its words of three or more
// characters, stop words removed.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) >= 3 && !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func truncate(s string, max int) string {
	if max <= 3 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-3])) + "..."
}
