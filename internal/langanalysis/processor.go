package langanalysis

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"unicode"

	prose "github.com/jdkato/prose/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AnalysisVersion tags every profile this analyzer produces. Bump it when
// the extraction logic changes so stale profiles can be recomputed.
const AnalysisVersion = "0.1"

// DefaultMaxExamples caps example sentences kept per concept.
const DefaultMaxExamples = 5

// POSStat counts one part-of-speech tag and its share of all word tokens.
type POSStat struct {
	Number int     `json:"number"`
	Ratio  float64 `json:"ratio"`
}

// Concept kinds keying the profile's concept map.
const (
	ConceptKindWord        = "word"
	ConceptKindPhrasalVerb = "phrasal_verb"
)

// ConceptOccurrence locates one concept usage inside its context sentence.
// Offsets are character positions relative to the sentence, so consumers can
// highlight the concept in place.
type ConceptOccurrence struct {
	Context   string `json:"context"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
}

// Concept is one extracted vocabulary item with usage examples.
type Concept struct {
	Concept        string              `json:"concept"`
	NumOccurrences int                 `json:"num_occurrences"`
	Examples       []ConceptOccurrence `json:"examples"`
	Difficulty     *float64            `json:"difficulty,omitempty"`
}

// Profile is the linguistic analysis of one subtitle text.
type Profile struct {
	AnalysisVersion    string               `json:"analysis_version"`
	Concepts           map[string][]Concept `json:"concepts"`
	POSStats           map[string]POSStat   `json:"pos_stats"`
	SentencesCount     int                  `json:"sentences_count"`
	SentencesAvgLength float64              `json:"sentences_avg_length"`
	Difficulty         *float64             `json:"difficulty,omitempty"`
}

// Analyzer builds linguistic profiles from plain text.
type Analyzer struct {
	maxExamples int
	lower       cases.Caser
	intN        func(n int) int
}

// NewAnalyzer creates an Analyzer keeping at most maxExamples example
// sentences per concept.
func NewAnalyzer(maxExamples int) *Analyzer {
	if maxExamples <= 0 {
		maxExamples = DefaultMaxExamples
	}
	return &Analyzer{
		maxExamples: maxExamples,
		lower:       cases.Lower(language.English),
		intN:        rand.IntN,
	}
}

type conceptState struct {
	kind    string
	concept Concept
	seen    int
}

// Analyze tokenizes and tags the text, extracts content-word and phrasal
// verb concepts with reservoir-sampled example sentences, and derives
// sentence statistics and an overall difficulty estimate.
func (a *Analyzer) Analyze(text string) (*Profile, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty text")
	}

	segmented, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return nil, fmt.Errorf("segment text: %w", err)
	}
	sentences := segmented.Sentences()
	if len(sentences) == 0 {
		return nil, errors.New("no sentences found")
	}

	posCounts := map[string]int{}
	concepts := map[string]*conceptState{}
	wordTokens := 0
	totalWords := 0

	for _, sentence := range sentences {
		totalWords += len(strings.Fields(sentence.Text))

		doc, err := prose.NewDocument(sentence.Text, prose.WithSegmentation(false), prose.WithExtraction(false))
		if err != nil {
			return nil, fmt.Errorf("tag sentence: %w", err)
		}
		tokens := doc.Tokens()
		offsets := tokenOffsets(sentence.Text, tokens)
		for i, token := range tokens {
			if !isWord(token.Text) {
				continue
			}
			wordTokens++
			posCounts[token.Tag]++

			if offsets[i] < 0 {
				continue
			}
			if pos, ok := contentPOS(token.Tag); ok {
				lemma := a.lemma(token.Text, token.Tag)
				a.record(concepts, ConceptKindWord, lemma, ConceptOccurrence{
					Context:   sentence.Text,
					StartChar: offsets[i],
					EndChar:   offsets[i] + len(token.Text),
				})

				// A verb followed by a particle forms a phrasal verb
				// ("give up", "look after").
				if pos == "verb" && i+1 < len(tokens) && tokens[i+1].Tag == "RP" && offsets[i+1] >= 0 {
					phrase := lemma + " " + a.lower.String(tokens[i+1].Text)
					a.record(concepts, ConceptKindPhrasalVerb, phrase, ConceptOccurrence{
						Context:   sentence.Text,
						StartChar: offsets[i],
						EndChar:   offsets[i+1] + len(tokens[i+1].Text),
					})
				}
			}
		}
	}

	profile := &Profile{
		AnalysisVersion:    AnalysisVersion,
		POSStats:           map[string]POSStat{},
		SentencesCount:     len(sentences),
		SentencesAvgLength: float64(totalWords) / float64(len(sentences)),
	}
	for tag, count := range posCounts {
		profile.POSStats[tag] = POSStat{
			Number: count,
			Ratio:  float64(count) / float64(wordTokens),
		}
	}

	ratings, err := wordRatings()
	if err != nil {
		return nil, err
	}
	profile.Concepts = map[string][]Concept{
		ConceptKindWord:        {},
		ConceptKindPhrasalVerb: {},
	}
	ratingSum := 0.0
	ratingCount := 0
	for _, state := range concepts {
		concept := state.concept
		if rating, ok := ratings[concept.Concept]; ok {
			value := rating
			concept.Difficulty = &value
			// Overall difficulty averages each rated concept once,
			// independent of how often it occurs.
			ratingSum += rating
			ratingCount++
		}
		profile.Concepts[state.kind] = append(profile.Concepts[state.kind], concept)
	}
	for _, list := range profile.Concepts {
		sort.Slice(list, func(i, j int) bool {
			if list[i].NumOccurrences == list[j].NumOccurrences {
				return list[i].Concept < list[j].Concept
			}
			return list[i].NumOccurrences > list[j].NumOccurrences
		})
	}
	if ratingCount > 0 {
		difficulty := ratingSum / float64(ratingCount)
		profile.Difficulty = &difficulty
	}

	return profile, nil
}

// tokenOffsets locates each token inside its sentence with a forward cursor.
// Tokens the tokenizer rewrote (smart quotes, split contractions) get -1 and
// produce no example occurrence.
func tokenOffsets(sentence string, tokens []prose.Token) []int {
	offsets := make([]int, len(tokens))
	cursor := 0
	for i, token := range tokens {
		idx := strings.Index(sentence[cursor:], token.Text)
		if idx < 0 {
			offsets[i] = -1
			continue
		}
		offsets[i] = cursor + idx
		cursor = offsets[i] + len(token.Text)
	}
	return offsets
}

// record counts one concept occurrence and keeps a capped reservoir sample
// of example occurrences so long texts don't favor early sentences.
func (a *Analyzer) record(concepts map[string]*conceptState, kind, text string, example ConceptOccurrence) {
	key := kind + "\x00" + text
	state, ok := concepts[key]
	if !ok {
		state = &conceptState{kind: kind, concept: Concept{Concept: text}}
		concepts[key] = state
	}
	state.concept.NumOccurrences++
	state.seen++

	if len(state.concept.Examples) < a.maxExamples {
		state.concept.Examples = append(state.concept.Examples, example)
		return
	}
	if idx := a.intN(state.seen); idx < a.maxExamples {
		state.concept.Examples[idx] = example
	}
}

// contentPOS maps a Penn Treebank tag to a concept class, rejecting
// function words.
func contentPOS(tag string) (string, bool) {
	switch {
	case strings.HasPrefix(tag, "NN"):
		return "noun", true
	case strings.HasPrefix(tag, "VB"):
		return "verb", true
	case strings.HasPrefix(tag, "JJ"):
		return "adjective", true
	case strings.HasPrefix(tag, "RB"):
		return "adverb", true
	default:
		return "", false
	}
}

// lemma applies light suffix normalization. Full morphological analysis is
// out of reach without a lexicon; these rules cover the regular inflections
// that matter for counting.
func (a *Analyzer) lemma(word, tag string) string {
	w := a.lower.String(word)
	switch {
	case strings.HasPrefix(tag, "NN") && strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasPrefix(tag, "NN") && strings.HasSuffix(w, "ses") && len(w) > 4:
		return w[:len(w)-2]
	case strings.HasPrefix(tag, "NN") && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && len(w) > 3:
		return w[:len(w)-1]
	case strings.HasPrefix(tag, "VB") && strings.HasSuffix(w, "ing") && len(w) > 5:
		return trimDoubledConsonant(w[:len(w)-3])
	case strings.HasPrefix(tag, "VB") && strings.HasSuffix(w, "ied") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasPrefix(tag, "VB") && strings.HasSuffix(w, "ed") && len(w) > 4:
		return trimDoubledConsonant(w[:len(w)-2])
	case strings.HasPrefix(tag, "VB") && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && len(w) > 3:
		return w[:len(w)-1]
	default:
		return w
	}
}

func trimDoubledConsonant(w string) string {
	if len(w) >= 2 && w[len(w)-1] == w[len(w)-2] && !strings.ContainsRune("aeiou", rune(w[len(w)-1])) {
		return w[:len(w)-1]
	}
	return w
}

func isWord(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
