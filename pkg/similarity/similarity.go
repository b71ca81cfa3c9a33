// Package similarity provides the text- and vector-similarity
// primitives shared by the consolidation agents and unified search:
// tokenization, Jaccard, TF-IDF cosine, and centroid. Dense vector
// cosine itself lives in the sibling math/vector package and is not
// re-exported here; callers comparing embeddings import that package.
package similarity

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/orneryd/stm/pkg/math/vector"
)

var cleanPattern = regexp.MustCompile(`[^\w\s]`)

// Tokenize lowercases s, strips punctuation, splits on whitespace, and
// drops tokens of length <= 2.
func Tokenize(s string) []string {
	cleaned := cleanPattern.ReplaceAllString(strings.ToLower(s), "")
	fields := strings.Fields(cleaned)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

// Jaccard returns |A ∩ B| / |A ∪ B| for two token sets; 0 if either is
// empty.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := toSet(a)
	setB := toSet(b)
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// TextSimilarity is the public text-similarity function: Jaccard over
// tokenized sets, chosen over TF-IDF because it is more robust for
// identical-pair comparisons.
func TextSimilarity(a, b string) float64 {
	return Jaccard(Tokenize(a), Tokenize(b))
}

func toSet(tokens []string) map[string]bool {
	s := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		s[t] = true
	}
	return s
}

// TF computes term frequency (count/total) for a token slice.
func TF(tokens []string) map[string]float64 {
	tf := make(map[string]float64)
	for _, t := range tokens {
		tf[t]++
	}
	total := float64(len(tokens))
	if total == 0 {
		return tf
	}
	for k := range tf {
		tf[k] /= total
	}
	return tf
}

// IDF computes inverse document frequency (ln(N/df)) for every term
// appearing across docs. When docs is empty a synthetic 2-document
// corpus (the two texts being compared) must be supplied by the caller
// of TFIDFSimilarity instead.
func IDF(docs [][]string) map[string]float64 {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := toSet(doc)
		for tok := range seen {
			df[tok]++
		}
	}
	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for tok, count := range df {
		idf[tok] = math.Log(n / float64(count))
	}
	return idf
}

// TFIDFSimilarity returns the cosine similarity of the TF*IDF vectors
// of a and b. If corpus is empty, a 2-document corpus consisting of
// [a,b] themselves is used as a fallback.
func TFIDFSimilarity(a, b string, corpus []string) float64 {
	tokA := Tokenize(a)
	tokB := Tokenize(b)
	if len(tokA) == 0 || len(tokB) == 0 {
		return 0
	}

	docs := make([][]string, 0, len(corpus)+2)
	if len(corpus) == 0 {
		docs = append(docs, tokA, tokB)
	} else {
		for _, d := range corpus {
			docs = append(docs, Tokenize(d))
		}
	}
	idf := IDF(docs)

	tfA := TF(tokA)
	tfB := TF(tokB)

	vocab := make(map[string]bool)
	for t := range tfA {
		vocab[t] = true
	}
	for t := range tfB {
		vocab[t] = true
	}
	terms := make([]string, 0, len(vocab))
	for t := range vocab {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	va := make([]float64, len(terms))
	vb := make([]float64, len(terms))
	for i, t := range terms {
		va[i] = tfA[t] * idf[t]
		vb[i] = tfB[t] * idf[t]
	}
	return vector.CosineSimilarityFloat64(va, vb)
}

// Centroid returns the element-wise mean of a list of equal-length
// vectors. Returns nil for an empty list.
func Centroid(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	sum := make([]float64, dim)
	for _, v := range vecs {
		for i, x := range v {
			if i < dim {
				sum[i] += float64(x)
			}
		}
	}
	out := make([]float32, dim)
	n := float64(len(vecs))
	for i, s := range sum {
		out[i] = float32(s / n)
	}
	return out
}
