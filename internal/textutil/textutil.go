// Package textutil holds the tokenizer shared by job matching and resume tailoring.
package textutil

import (
	"sort"
	"strings"
	"unicode"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/text/cases"
)

var stopWords = mapset.NewThreadUnsafeSet(
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from", "has", "have",
	"in", "into", "is", "it", "its", "of", "on", "or", "our", "that", "the", "their", "this",
	"to", "we", "will", "with", "you", "your", "who", "what", "which", "while", "about",
	"must", "plus", "looking", "role", "team", "work", "working", "years", "year", "strong",
	"required", "preferred", "ability", "able", "including", "etc", "also", "other", "using",
	"well", "new", "join", "help", "can", "all", "more", "not", "than", "like", "any",
)

// Tokenize splits text into case-folded terms with stop words removed.
// Order and duplicates are preserved.
func Tokenize(text string) []string {
	folded := cases.Fold().String(text)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := normalize(f)
		if tok == "" || stopWords.Contains(f) || stopWords.Contains(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// TokenSet returns the distinct terms of all given texts.
func TokenSet(texts ...string) mapset.Set[string] {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, text := range texts {
		for _, tok := range Tokenize(text) {
			set.Add(tok)
		}
	}
	return set
}

// TopKeywords returns up to n of the most frequent terms in text.
// Ties keep the order of first appearance, so the result is deterministic.
func TopKeywords(text string, n int) []string {
	if n <= 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, tok := range Tokenize(text) {
		if _, seen := counts[tok]; !seen {
			order = append(order, tok)
		}
		counts[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}
	return order
}

func normalize(tok string) string {
	tok = strings.Trim(tok, "#")
	if len([]rune(tok)) < 2 || isNumber(tok) {
		return ""
	}
	// crude plural folding: "llms" and "llm" must meet
	if len(tok) > 3 && strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") {
		tok = strings.TrimSuffix(tok, "s")
	}
	return tok
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
