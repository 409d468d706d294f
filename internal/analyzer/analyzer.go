// Package analyzer turns free-form message text into a structured
// MessageAnalysis using deterministic lexicon and regex heuristics. It has
// no state and no side effects.
package analyzer

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/arborhq/arbor/internal/models"
)

const maxTags = 8

var agePattern = regexp.MustCompile(`\d+ (month|year|week)s? old`)
var hashtagPattern = regexp.MustCompile(`#([a-zA-Z0-9_]+)`)

type Analyzer struct{}

func New() *Analyzer {
	return &Analyzer{}
}

// AnalyzeMessage classifies one message. Categories are evaluated in fixed
// rule order and returned sorted by confidence descending; callers may treat
// the first entry as the primary classification.
func (a *Analyzer) AnalyzeMessage(content string, mediaURLs []string) models.MessageAnalysis {
	lower := strings.ToLower(content)

	analysis := models.MessageAnalysis{
		Sentiment:      a.detectSentiment(content, lower),
		Urgency:        a.detectUrgency(lower),
		Milestone:      a.DetectMilestone(lower),
		Topics:         a.DetectTopics(lower),
		Tags:           a.extractTags(content, lower),
		People:         a.detectPeople(content, lower),
		Locations:      matchAny(lower, locationKeywords),
		TimeReferences: matchAny(lower, timeReferenceKeywords),
	}

	var categories []models.CategoryScore
	if len(mediaURLs) > 0 {
		categories = append(categories, models.CategoryScore{
			Type: "photo_share", Confidence: 0.9, Reason: "media attached",
		})
	}
	if analysis.Milestone != "" {
		categories = append(categories, models.CategoryScore{
			Type: "milestone", Confidence: 0.95, Reason: "milestone keyword: " + analysis.Milestone,
		})
	}
	if containsAny(lower, celebrationKeywords) {
		categories = append(categories, models.CategoryScore{
			Type: "celebration", Confidence: 0.8, Reason: "celebration keyword",
		})
	}
	if containsAny(lower, concernKeywords) || strings.Contains(content, "?") {
		categories = append(categories, models.CategoryScore{
			Type: "question", Confidence: 0.85, Reason: "question mark or concern keyword",
		})
	}
	if containsAny(lower, memoryKeywords) {
		categories = append(categories, models.CategoryScore{
			Type: "memory", Confidence: 0.75, Reason: "temporal reference",
		})
	}
	if containsAny(lower, routineKeywords) {
		categories = append(categories, models.CategoryScore{
			Type: "routine", Confidence: 0.7, Reason: "routine keyword",
		})
	}

	// Only media matched (or nothing at all): this is a plain daily update.
	textMatched := false
	for _, c := range categories {
		if c.Type != "photo_share" {
			textMatched = true
			break
		}
	}
	if !textMatched {
		categories = append(categories, models.CategoryScore{
			Type: "daily_update", Confidence: 0.6, Reason: "default classification",
		})
	}

	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].Confidence > categories[j].Confidence
	})
	analysis.Categories = categories

	return analysis
}

// DetectMilestone scans the ordered milestone dictionary; the first entry
// with a matching phrase wins, so a message naming several milestones
// records only the earliest-declared one.
func (a *Analyzer) DetectMilestone(lower string) string {
	for _, entry := range milestoneLexicon {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.name
			}
		}
	}
	return ""
}

// DetectTopics returns the set of topics whose trigger words appear in the
// text, in stable (sorted) order.
func (a *Analyzer) DetectTopics(lower string) []string {
	var topics []string
	for topic, keywords := range topicLexicon {
		if containsAny(lower, keywords) {
			topics = append(topics, topic)
		}
	}
	sort.Strings(topics)
	return topics
}

func (a *Analyzer) detectSentiment(content, lower string) models.Sentiment {
	positive := countHits(lower, positiveWords)
	negative := countHits(lower, negativeWords)

	for _, e := range positiveEmojis {
		positive += strings.Count(content, e)
	}
	for _, e := range negativeEmojis {
		negative += strings.Count(content, e)
	}
	if strings.Contains(content, "!") {
		positive++
	}

	switch {
	case positive > negative:
		return models.SentimentPositive
	case negative > positive:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func (a *Analyzer) detectUrgency(lower string) models.Urgency {
	if containsAny(lower, urgencyHighKeywords) {
		return models.UrgencyHigh
	}
	if containsAny(lower, urgencyMediumKeywords) {
		return models.UrgencyMedium
	}
	return models.UrgencyLow
}

func (a *Analyzer) extractTags(content, lower string) []string {
	seen := make(map[string]struct{})
	var tags []string
	add := func(tag string) {
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	for _, m := range hashtagPattern.FindAllStringSubmatch(content, -1) {
		add(strings.ToLower(m[1]))
	}
	for _, kw := range tagVocabulary {
		if strings.Contains(lower, kw) {
			add(kw)
		}
	}
	for _, m := range agePattern.FindAllString(lower, -1) {
		add(strings.ReplaceAll(m, " ", "_"))
	}

	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}

// detectPeople combines the relative-keyword list with a naive heuristic:
// a capitalized word that does not start a sentence is probably a name.
func (a *Analyzer) detectPeople(content, lower string) []string {
	seen := make(map[string]struct{})
	var people []string
	add := func(name string) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		people = append(people, name)
	}

	for _, kw := range peopleKeywords {
		if containsWord(lower, kw) {
			add(kw)
		}
	}

	for _, sentence := range splitSentences(content) {
		words := strings.Fields(sentence)
		for i, word := range words {
			if i == 0 {
				continue
			}
			trimmed := strings.TrimFunc(word, func(r rune) bool {
				return !unicode.IsLetter(r)
			})
			if len(trimmed) < 3 || !isCapitalizedName(trimmed) {
				continue
			}
			if _, stop := capitalizedStopwords[trimmed]; stop {
				continue
			}
			add(trimmed)
		}
	}

	return people
}

// SuggestedTags derives display tags from an analysis: high-confidence
// category types, non-neutral sentiment, topics, the milestone, and an
// urgency marker. At most 8 unique entries.
func (a *Analyzer) SuggestedTags(analysis models.MessageAnalysis) []string {
	seen := make(map[string]struct{})
	var tags []string
	add := func(tag string) {
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	for _, c := range analysis.Categories {
		if c.Confidence > 0.7 {
			add(c.Type)
		}
	}
	if analysis.Sentiment != models.SentimentNeutral {
		add(string(analysis.Sentiment))
	}
	for _, topic := range analysis.Topics {
		add(topic)
	}
	add(analysis.Milestone)
	if analysis.Urgency != models.UrgencyLow {
		add("urgency_" + string(analysis.Urgency))
	}

	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func matchAny(text string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func countHits(text string, words []string) int {
	hits := 0
	for _, w := range words {
		if containsWord(text, w) {
			hits++
		}
	}
	return hits
}

// containsWord matches on field boundaries so that "mom" does not hit
// "moment".
func containsWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if f == word {
			return true
		}
	}
	return false
}

func splitSentences(content string) []string {
	return strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
}

func isCapitalizedName(word string) bool {
	runes := []rune(word)
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if !unicode.IsLower(r) {
			return false
		}
	}
	return true
}
