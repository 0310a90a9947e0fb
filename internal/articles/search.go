package articles

import (
	"content-wiki/internal/environment"
	"content-wiki/internal/models"
	"content-wiki/internal/utils"
	"fmt"
	"github.com/PuerkitoBio/goquery"
	"regexp"
	"slices"
	"strings"
	"unicode"
)

const (
	minSearchTermLength = 2
	defaultPageSize     = 10
	maxPageSize         = 50
	// searchCandidateLimit bounds the matches loaded for ranking
	searchCandidateLimit = 200
	snippetRadius        = 60
)

type SearchPayload struct {
	Term     string
	Pageable Pageable
}

type SearchMatch struct {
	Slug            string  `json:"slug"`
	Title           string  `json:"title"`
	Description     *string `json:"description"`
	Category        string  `json:"category"`
	Similarity      float64 `json:"similarity"`
	MatchingText    string  `json:"matchingText"`
	TextBeforeMatch string  `json:"textBeforeMatch"`
	TextAfterMatch  string  `json:"textAfterMatch"`
}

type Page[T any] struct {
	TotalElements int      `json:"totalElements"`
	TotalPages    int      `json:"totalPages"`
	Content       []T      `json:"content"`
	Pageable      Pageable `json:"pageable"`
}

type Pageable struct {
	PageNumber int  `json:"pageNumber"`
	PageSize   int  `json:"pageSize"`
	Sort       Sort `json:"sort"`
}

type Sort struct {
	Orders []Order `json:"orders"`
}

type Order struct {
	Property  string    `json:"property"`
	Direction Direction `json:"direction"`
}

type Direction string

const (
	ASC  Direction = "ASC"
	DESC Direction = "DESC"
)

type SearchMatchMapper struct {
	*environment.Env
}

type rankedArticle struct {
	article    models.Article
	text       string
	similarity float64
}

// rank scores every article against term and sorts them by similarity in descending order.
// Articles with equal similarity keep the order of the repository (featured first, then most viewed).
func rank(term string, articles []models.Article) []rankedArticle {
	ranked := make([]rankedArticle, 0, len(articles))
	for _, a := range articles {
		text := PlainText(a.Body)

		similarity := TrigramSorensenDiceSimilarity(a.Title, term)
		if a.Description != nil {
			similarity = max(similarity, TrigramSorensenDiceSimilarity(*a.Description, term))
		}
		if before, match, after, ok := Snippet(text, term, snippetRadius); ok {
			similarity = max(similarity, TrigramSorensenDiceSimilarity(before+match+after, term))
		}

		ranked = append(ranked, rankedArticle{article: a, text: text, similarity: similarity})
	}

	// sorts matches based on similarity in descending order (the most similar match is the first element)
	slices.SortStableFunc(ranked, func(a, b rankedArticle) int {
		switch {
		case a.similarity > b.similarity:
			return -1
		case a.similarity < b.similarity:
			return 1
		default:
			return 0
		}
	})
	return ranked
}

func (m SearchMatchMapper) mapToSearchPage(payload SearchPayload, matchCount int, ranked []rankedArticle) (Page[SearchMatch], error) {
	if ranked == nil {
		return Page[SearchMatch]{}, fmt.Errorf("search matches must not be nil")
	}

	pageSize := payload.Pageable.PageSize
	from := min(payload.Pageable.PageNumber*pageSize, len(ranked))
	to := min(from+pageSize, len(ranked))

	matches := make([]SearchMatch, 0, to-from)
	for _, v := range ranked[from:to] {
		match := SearchMatch{
			Slug:         v.article.Slug,
			Title:        v.article.Title,
			Description:  v.article.Description,
			Similarity:   v.similarity,
			MatchingText: payload.Term,
		}
		if v.article.Category != nil {
			match.Category = v.article.Category.Title
		}
		if before, text, after, ok := Snippet(v.text, payload.Term, snippetRadius); ok {
			match.TextBeforeMatch, match.MatchingText, match.TextAfterMatch = before, text, after
		}

		matches = append(matches, match)
	}

	payload.Pageable.Sort.Orders = []Order{{Property: "similarity", Direction: DESC}}

	page := Page[SearchMatch]{
		Content:       matches,
		Pageable:      payload.Pageable,
		TotalElements: matchCount,
		TotalPages:    utils.CalculateTotalPages(matchCount, pageSize),
	}

	return page, nil
}

// PlainText returns the text content of an HTML body with whitespace collapsed.
// Bodies that cannot be parsed are returned unchanged.
func PlainText(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Snippet finds the first case-insensitive occurrence of term in text and returns it
// together with up to radius runes of text before and after it.
func Snippet(text, term string, radius int) (before, match, after string, ok bool) {
	runes := []rune(text)
	needle := []rune(strings.ToLower(term))
	if len(needle) == 0 || len(needle) > len(runes) {
		return "", "", "", false
	}

	for i := 0; i+len(needle) <= len(runes); i++ {
		if !equalFold(runes[i:i+len(needle)], needle) {
			continue
		}
		end := i + len(needle)
		return string(runes[max(0, i-radius):i]), string(runes[i:end]), string(runes[end:min(len(runes), end+radius)]), true
	}
	return "", "", "", false
}

func equalFold(a, lowered []rune) bool {
	for i := range a {
		if unicode.ToLower(a[i]) != lowered[i] {
			return false
		}
	}
	return true
}

func TrigramSorensenDiceSimilarity(a, b string) float64 {

	aTrigrams := TransformToUniqueTrigrams(a)
	bTrigrams := TransformToUniqueTrigrams(b)

	aCount, bCount := len(aTrigrams), len(bTrigrams)
	if aCount+bCount == 0 {
		return 0
	}

	aTrigramsByTrigram := make(map[string]struct{}, len(aTrigrams))
	for _, v := range aTrigrams {
		aTrigramsByTrigram[v] = struct{}{}
	}

	var intersectionCount int
	for _, bT := range bTrigrams {
		if _, ok := aTrigramsByTrigram[bT]; !ok {
			continue
		}
		intersectionCount++
	}

	// Sorensen-Dice coefficient
	//   SDC = 2 * |A ∩ B| / (|A| + |B|)
	return 2 * float64(intersectionCount) / float64(aCount+bCount)
}

var nonWord = regexp.MustCompile(`\W+`)

func TransformToUniqueTrigrams(a string) []string {
	if len(a) == 0 {
		return []string{}
	}

	// split on non-word characters
	words := nonWord.Split(a, -1)

	var trigramCount int
	for _, word := range words {
		// 1 there's always one trigram because of padding
		// 2 aside from the initial trigram, we need to shift left n times
		//   with n equal to the count of character in the string (=> len(a))
		trigramCount += 1 + len(word)
	}

	// to minimize the memory footprint, we use struct as value
	uniqueTrigrams := make(map[string]struct{}, trigramCount)

	for _, word := range words {
		if len(word) == 0 {
			continue
		}
		word = strings.ToLower(word)
		padded := "  " + word + " "

		for i := 0; i < 1+len(word); i++ {
			t := padded[:3]
			uniqueTrigrams[t] = struct{}{}
			padded = padded[1:]
		}
	}

	trigrams := make([]string, 0, len(uniqueTrigrams))
	for t := range uniqueTrigrams {
		trigrams = append(trigrams, t)
	}

	// the following quicksort runs in n*lg(n) on average
	// because we can assume that the input is randomly ordered (=not sorted)
	slices.Sort(trigrams)

	return trigrams
}
