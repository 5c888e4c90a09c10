// Package embedding implements a deterministic hashing embedder used for
// vector retrieval. Embeddings are a signed bag-of-words projected into a
// fixed-dimension space, so identical text always yields identical vectors
// without any model dependency.
package embedding

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Dim is the embedding dimensionality. It must match the vector column width.
const Dim = 384

var tokenRE = regexp.MustCompile(`[a-z0-9_]+`)

// stopwords are dropped before hashing. They are near-universal in alert and
// runbook text and carry no retrieval signal.
var stopwords = map[string]struct{}{
	"services": {},
	"service":  {},
	"incident": {},
}

// Tokens lowercases text and returns its word tokens with stopwords removed.
func Tokens(text string) []string {
	raw := tokenRE.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if _, skip := stopwords[tok]; skip {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Embed hashes each token into a signed slot of a Dim-wide vector and
// L2-normalizes the result. Text with no tokens yields the zero vector.
func Embed(text string) []float32 {
	vec := make([]float32, Dim)
	for _, tok := range Tokens(text) {
		idx, sign := slot(tok)
		vec[idx] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// slot maps a token to a vector index and a +1/-1 sign via its md5 digest.
func slot(token string) (int, float32) {
	sum := md5.Sum([]byte(token))
	digest := hex.EncodeToString(sum[:])

	idx64, _ := strconv.ParseUint(digest[:8], 16, 64)
	signNibble, _ := strconv.ParseUint(digest[8:9], 16, 64)

	sign := float32(1)
	if signNibble%2 != 0 {
		sign = -1
	}
	return int(idx64 % Dim), sign
}

// Jaccard computes set overlap between the token sets of two texts.
// Both-empty inputs score zero.
func Jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	inter := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokens(text) {
		set[tok] = struct{}{}
	}
	return set
}
