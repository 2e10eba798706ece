package citation

import (
	"strings"
	"time"
)

// DiscardThreshold is the highest score a retained citation may have.
// Scores in the 40-60 band are suspicious but deliberately kept.
const DiscardThreshold = 60

// Score bounds.
const (
	MinScore = 0
	MaxScore = 100
)

// Year bounds for the baseline and trust adjustments.
const (
	AncientYear = 1800 // years below this look unusual
	ModernYear  = 1990 // authored citations from this year on earn full trust
)

// Category is a family of non-bibliographic text.
type Category int

const (
	Algorithmic Category = iota
	Mathematical
	FigureCaption
	Biographical
)

// Categories lists every category in scoring order.
var Categories = []Category{Algorithmic, Mathematical, FigureCaption, Biographical}

func (c Category) String() string {
	switch c {
	case Algorithmic:
		return "algorithmic"
	case Mathematical:
		return "mathematical"
	case FigureCaption:
		return "figure_caption"
	case Biographical:
		return "biographical"
	default:
		return "unknown"
	}
}

// CapRule bounds one category's contribution. When OverrideMinSignals is
// positive and at least that many signals matched, Override replaces Base.
type CapRule struct {
	Base               int
	OverrideMinSignals int
	Override           int
}

// Limit returns the cap that applies given the number of matched signals.
func (r CapRule) Limit(signals int) int {
	if r.OverrideMinSignals > 0 && signals >= r.OverrideMinSignals {
		return r.Override
	}
	return r.Base
}

// CategoryCaps is the cap policy for every category.
var CategoryCaps = map[Category]CapRule{
	Algorithmic:   {Base: 60},
	Mathematical:  {Base: 60},
	FigureCaption: {Base: 60},
	Biographical:  {Base: 60, OverrideMinSignals: 3, Override: 80},
}

// Band classifies a score for reporting.
type Band string

const (
	BandLikely     Band = "likely"
	BandSuspicious Band = "suspicious"
	BandGarbage    Band = "garbage"
)

// BandOf returns the reporting band for a score.
func BandOf(score int) Band {
	switch {
	case score > DiscardThreshold:
		return BandGarbage
	case score >= 40:
		return BandSuspicious
	default:
		return BandLikely
	}
}

// IsGarbage reports whether a citation with this score should be discarded.
func IsGarbage(score int) bool {
	return score > DiscardThreshold
}

// Breakdown explains how a score was reached.
type Breakdown struct {
	Shortcut       bool           `json:"shortcut,omitempty"`
	Baseline       int            `json:"baseline"`
	Categories     map[string]int `json:"categories,omitempty"`
	TrustReduction int            `json:"trust_reduction"`
	Score          int            `json:"score"`
}

// Scorer computes garbage scores relative to a current year.
// The zero value uses the wall clock.
type Scorer struct {
	CurrentYear int
}

// NewScorer returns a Scorer pinned to the current calendar year.
func NewScorer() Scorer {
	return Scorer{CurrentYear: time.Now().Year()}
}

// Score returns the garbage score of e using the current calendar year.
func Score(e Entry) int {
	return NewScorer().Score(e)
}

// Score returns the garbage score of e in [0,100].
func (s Scorer) Score(e Entry) int {
	return s.Breakdown(e).Score
}

// Breakdown scores e and reports each stage's contribution.
func (s Scorer) Breakdown(e Entry) Breakdown {
	if e.Raw == "" {
		if e.Title == "" && !e.HasAuthors() {
			return Breakdown{Shortcut: true, Score: MaxScore}
		}
		return Breakdown{Shortcut: true, Score: MinScore}
	}

	latest := s.year() + 1
	b := Breakdown{Categories: make(map[string]int, len(Categories))}

	b.Baseline = baseline(e, latest)
	score := b.Baseline

	text := lower(e.Raw)
	for _, c := range Categories {
		sub := CategoryScore(c, text)
		if sub > 0 {
			b.Categories[c.String()] = sub
		}
		score += sub
	}

	before := score
	score = trustReduce(e, score, latest)
	b.TrustReduction = before - score

	b.Score = min(MaxScore, score)
	return b
}

func (s Scorer) year() int {
	if s.CurrentYear == 0 {
		return time.Now().Year()
	}
	return s.CurrentYear
}

// baseline penalizes missing or implausible parsed fields.
func baseline(e Entry, latest int) int {
	score := 0
	if !e.HasAuthors() {
		score += 15
	}
	switch {
	case e.Year == 0:
		score += 10
	case e.Year < AncientYear:
		score += 5
	case e.Year > latest:
		score += 15
	}
	return score
}

// trustReduce subtracts trust signals, flooring at zero after each step.
func trustReduce(e Entry, score, latest int) int {
	if e.Venue != "" {
		score = max(0, score-10)
		if hasTrustedVenue(e.Venue) {
			score = max(0, score-10)
		}
	}

	if e.HasAuthors() && e.Year != 0 {
		switch {
		case e.Year >= ModernYear && e.Year <= latest:
			score = max(0, score-20)
		case e.Year < ModernYear:
			score = max(0, score-10)
		}
	}
	return score
}

func hasTrustedVenue(venue string) bool {
	v := lower(venue)
	for _, kw := range TrustedVenueKeywords {
		if strings.Contains(v, kw) {
			return true
		}
	}
	return false
}

// CategoryScore returns the capped contribution of one category for
// already lower-cased text.
func CategoryScore(c Category, text string) int {
	points, signals := rawCategory(c, text)
	if points <= 0 {
		return 0
	}
	return min(points, CategoryCaps[c].Limit(signals))
}

// rawCategory returns uncapped points and the number of matched signals.
func rawCategory(c Category, text string) (points, signals int) {
	switch c {
	case Algorithmic:
		return algorithmic(text)
	case Mathematical:
		return mathematical(text)
	case FigureCaption:
		return figureCaption(text)
	case Biographical:
		return biographical(text)
	}
	return 0, 0
}

func algorithmic(text string) (points, signals int) {
	for _, kw := range AlgorithmicKeywords {
		if strings.Contains(text, kw) {
			points += 15
			signals++
		}
	}
	if latexSetPattern.MatchString(text) {
		points += 25
		signals++
	}
	if strings.Contains(text, ". . .") || strings.Contains(text, "...") {
		points += 10
		signals++
	}
	return points, signals
}

func mathematical(text string) (points, signals int) {
	if strings.Count(text, "+") >= 3 {
		points += 20
		signals++
	}
	if strings.Count(text, "=") >= 2 {
		points += 25
		signals++
	}

	if scripts := len(latexScriptPattern.FindAllStringIndex(text, -1)); scripts > 0 {
		points += min(20, scripts*5)
		signals++
	}

	if words := countWords(text); words > 0 {
		symbols := len(symbolPattern.FindAllStringIndex(text, -1))
		if float64(symbols)/float64(words) > 0.5 {
			points += 15
			signals++
		}
	}
	return points, signals
}

func figureCaption(text string) (points, signals int) {
	if figurePattern.MatchString(text) {
		points += 30
		signals++
	}
	if tablePattern.MatchString(text) {
		points += 30
		signals++
	}
	if hasSampleSize(text) {
		points += 25
		signals++
	}
	if subfigurePattern.MatchString(text) {
		points += 20
		signals++
	}

	switch n := len(hyperparamPattern.FindAllStringIndex(text, -1)); {
	case n > 5:
		points += 40
		signals++
	case n > 2:
		points += 20
		signals++
	}
	return points, signals
}

func biographical(text string) (points, signals int) {
	for _, phrase := range BiographicalPhrases {
		if strings.Contains(text, phrase) {
			signals++
		}
	}
	return signals * 30, signals
}
