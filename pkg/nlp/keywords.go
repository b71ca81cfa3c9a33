// Package nlp turns free text into ranked keyword phrases.
//
// Extractor implements a RAKE-style (Rapid Automatic Keyword
// Extraction) algorithm: split on stopwords and punctuation into
// candidate phrases, score each word by degree/frequency, and rank
// phrases by the sum of their member words' scores. Multi-word terms
// like "typescript project" are preserved as single candidates rather
// than split into "typescript" and "project".
package nlp

import (
	"regexp"
	"sort"
	"strings"
)

var (
	splitPattern = regexp.MustCompile(`[.!?,;:()\[\]{}"'\n\t]+`)
	wordPattern  = regexp.MustCompile(`[a-z0-9]+(?:[-_][a-z0-9]+)*`)
)

// defaultStopwords is a small, language-appropriate stopword list;
// good enough to separate candidate phrases without an external corpus
// file.
var defaultStopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(
		"a an the and or but if then else for of to in on at by with from " +
			"is are was were be been being this that these those it its " +
			"as about into over under again further you your i me my we our " +
			"he she they them his her their not no so up down out just own " +
			"do does did doing have has had having will would shall should " +
			"can could may might must there here when where why how all any " +
			"both each few more most other some such only same than too very " +
			"help set new my") {
		defaultStopwords[w] = true
	}
}

// Extractor extracts ranked keyword phrases. It carries no mutable
// state across calls; the same instance may be reused concurrently.
type Extractor struct {
	stopwords map[string]bool
}

// NewExtractor returns an Extractor using the built-in stopword list.
func NewExtractor() *Extractor {
	return &Extractor{stopwords: defaultStopwords}
}

// Extract returns up to maxKeywords ranked, lowercased phrases from
// message. Returns an empty (non-nil) slice for empty or
// whitespace-only input.
func (e *Extractor) Extract(message string, maxKeywords int) []string {
	phrases := e.candidatePhrases(message)
	if len(phrases) == 0 {
		return []string{}
	}

	wordScore := scoreWords(phrases)

	type scored struct {
		phrase string
		score  float64
	}
	seen := make(map[string]bool, len(phrases))
	ranked := make([]scored, 0, len(phrases))
	for _, p := range phrases {
		if seen[p.text] {
			continue
		}
		seen[p.text] = true
		var sum float64
		for _, w := range p.words {
			sum += wordScore[w]
		}
		ranked = append(ranked, scored{phrase: p.text, score: sum})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].phrase < ranked[j].phrase
	})

	if maxKeywords <= 0 {
		maxKeywords = 20
	}
	if len(ranked) > maxKeywords {
		ranked = ranked[:maxKeywords]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.phrase
	}
	return out
}

type phrase struct {
	text  string
	words []string
}

// candidatePhrases splits message on sentence punctuation, then within
// each sentence splits further on stopwords, yielding runs of
// consecutive non-stopword words as phrases.
func (e *Extractor) candidatePhrases(message string) []phrase {
	lower := strings.ToLower(message)
	var phrases []phrase
	for _, sentence := range splitPattern.Split(lower, -1) {
		words := wordPattern.FindAllString(sentence, -1)
		var run []string
		flush := func() {
			if len(run) == 0 {
				return
			}
			phrases = append(phrases, phrase{text: strings.Join(run, " "), words: append([]string(nil), run...)})
			run = nil
		}
		for _, w := range words {
			if e.stopwords[w] {
				flush()
				continue
			}
			run = append(run, w)
		}
		flush()
	}
	return phrases
}

// scoreWords computes RAKE word scores: for each word,
// degree(word)/frequency(word), where degree sums the length (in
// words) of every phrase the word co-occurs in (including itself) and
// frequency counts occurrences across all phrases.
func scoreWords(phrases []phrase) map[string]float64 {
	freq := make(map[string]int)
	degree := make(map[string]int)
	for _, p := range phrases {
		length := len(p.words)
		for _, w := range p.words {
			freq[w]++
			degree[w] += length
		}
	}
	score := make(map[string]float64, len(freq))
	for w, f := range freq {
		score[w] = float64(degree[w]) / float64(f)
	}
	return score
}
