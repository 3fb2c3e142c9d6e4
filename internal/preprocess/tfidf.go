package preprocess

import (
	"math"
	"sort"
	"strings"
)

// englishStopWords are dropped before term counting.
var englishStopWords = map[string]bool{
	"a": true, "about": true, "above": true, "after": true, "again": true,
	"all": true, "am": true, "an": true, "and": true, "any": true,
	"are": true, "as": true, "at": true, "be": true, "because": true,
	"been": true, "before": true, "being": true, "below": true, "between": true,
	"both": true, "but": true, "by": true, "can": true, "did": true,
	"do": true, "does": true, "doing": true, "down": true, "during": true,
	"each": true, "few": true, "for": true, "from": true, "further": true,
	"had": true, "has": true, "have": true, "having": true, "he": true,
	"her": true, "here": true, "hers": true, "him": true, "his": true,
	"how": true, "i": true, "if": true, "in": true, "into": true,
	"is": true, "it": true, "its": true, "just": true, "me": true,
	"more": true, "most": true, "my": true, "no": true, "nor": true,
	"not": true, "now": true, "of": true, "off": true, "on": true,
	"once": true, "only": true, "or": true, "other": true, "our": true,
	"out": true, "over": true, "own": true, "same": true, "she": true,
	"so": true, "some": true, "such": true, "than": true, "that": true,
	"the": true, "their": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true, "through": true,
	"to": true, "too": true, "under": true, "until": true, "up": true,
	"very": true, "was": true, "we": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "who": true,
	"whom": true, "why": true, "with": true, "you": true, "your": true,
	"yours": true,
}

// TFIDF vectorizes cleaned descriptions over unigrams and bigrams. The
// vocabulary is capped by document frequency and the output columns follow
// the sorted term list so the mapping is deterministic. All fields are
// exported for gob.
type TFIDF struct {
	MaxFeatures int
	MinDocFreq  int
	Terms       []string
	IDF         []float64

	index map[string]int
}

// NewTFIDF returns an unfitted vectorizer with the vocabulary limits used
// across the categorization pipeline.
func NewTFIDF() *TFIDF {
	return &TFIDF{MaxFeatures: 1000, MinDocFreq: 2}
}

// Fit builds the vocabulary and inverse document frequencies from a
// corpus of cleaned descriptions.
func (t *TFIDF) Fit(docs []string) {
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, term := range tokenize(doc) {
			if !seen[term] {
				seen[term] = true
				docFreq[term]++
			}
		}
	}

	type termCount struct {
		term string
		df   int
	}
	kept := make([]termCount, 0, len(docFreq))
	for term, df := range docFreq {
		if df >= t.MinDocFreq {
			kept = append(kept, termCount{term, df})
		}
	}
	// Highest document frequency wins a vocabulary slot; ties go
	// alphabetically so refitting the same corpus gives the same columns.
	sort.Slice(kept, func(a, b int) bool {
		if kept[a].df != kept[b].df {
			return kept[a].df > kept[b].df
		}
		return kept[a].term < kept[b].term
	})
	if len(kept) > t.MaxFeatures {
		kept = kept[:t.MaxFeatures]
	}
	sort.Slice(kept, func(a, b int) bool { return kept[a].term < kept[b].term })

	n := float64(len(docs))
	t.Terms = make([]string, len(kept))
	t.IDF = make([]float64, len(kept))
	t.index = make(map[string]int, len(kept))
	for i, tc := range kept {
		t.Terms[i] = tc.term
		t.IDF[i] = math.Log((1+n)/(1+float64(tc.df))) + 1
		t.index[tc.term] = i
	}
}

// Transform maps one cleaned description onto the fitted vocabulary,
// L2-normalized. Unknown terms are ignored.
func (t *TFIDF) Transform(doc string) []float64 {
	if t.index == nil {
		t.rebuildIndex()
	}
	vec := make([]float64, len(t.Terms))
	for _, term := range tokenize(doc) {
		if i, ok := t.index[term]; ok {
			vec[i]++
		}
	}

	norm := 0.0
	for i := range vec {
		vec[i] *= t.IDF[i]
		norm += vec[i] * vec[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// Fitted reports whether the vocabulary has been built.
func (t *TFIDF) Fitted() bool {
	return len(t.Terms) > 0
}

// rebuildIndex restores the term lookup after gob decoding, which only
// round-trips the exported slices.
func (t *TFIDF) rebuildIndex() {
	t.index = make(map[string]int, len(t.Terms))
	for i, term := range t.Terms {
		t.index[term] = i
	}
}

// tokenize produces stop-word-filtered unigrams and bigrams.
func tokenize(doc string) []string {
	raw := strings.Fields(doc)
	words := make([]string, 0, len(raw))
	for _, w := range raw {
		if !englishStopWords[w] {
			words = append(words, w)
		}
	}

	terms := make([]string, 0, 2*len(words))
	terms = append(terms, words...)
	for i := 0; i+1 < len(words); i++ {
		terms = append(terms, words[i]+" "+words[i+1])
	}
	return terms
}
