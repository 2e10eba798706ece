// Package synthesis asks a language model for a short structured summary
// of a paper or article and parses the tagged answer.
package synthesis

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/matsen/paperlib/internal/reference"
)

const (
	// MaxTextChars is how much of the source text goes into the prompt.
	MaxTextChars = 50000

	// DefaultMaxTokens caps the model's answer.
	DefaultMaxTokens = 1500

	// MaxConcepts caps the number of key concepts kept from an answer.
	MaxConcepts = 8

	// InputPricePerMTok and OutputPricePerMTok are USD per million tokens.
	InputPricePerMTok  = 1.00
	OutputPricePerMTok = 5.00

	notSpecified = "Not specified"
	fallbackArea = "machine learning and AI"
)

// Synthesis is a model-written summary of one paper or article.
type Synthesis struct {
	Summary        string    `json:"summary"`
	WhyYouCared    string    `json:"why_you_cared"`
	KeyConcepts    []string  `json:"key_concepts"`
	MemorableQuote string    `json:"memorable_quote,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
	Model          string    `json:"model"`
	CostUSD        float64   `json:"cost_usd"`
}

// researchAreas is checked in order; the first area with a term in the
// title or venue wins.
var researchAreas = []struct {
	area  string
	terms []string
}{
	{"machine learning", []string{"neural", "learning", "model", "training", "deep"}},
	{"natural language processing", []string{"language", "nlp", "text", "translation", "llm"}},
	{"computer vision", []string{"vision", "image", "visual", "detection", "segmentation"}},
	{"reinforcement learning", []string{"reinforcement", "agent", "policy", "reward", "rl"}},
	{"interpretability", []string{"interpretability", "explainable", "transparency", "understanding"}},
}

// ResearchArea guesses a research area from a title and venue.
func ResearchArea(title, venue string) string {
	title = strings.ToLower(title)
	venue = strings.ToLower(venue)
	for _, ra := range researchAreas {
		for _, term := range ra.terms {
			if strings.Contains(title, term) || strings.Contains(venue, term) {
				return ra.area
			}
		}
	}
	return fallbackArea
}

// Generator builds prompts, calls a Completer and parses the answer.
type Generator struct {
	completer Completer
	maxTokens int
	now       func() time.Time
}

// NewGenerator creates a Generator backed by c.
func NewGenerator(c Completer) *Generator {
	return &Generator{completer: c, maxTokens: DefaultMaxTokens, now: time.Now}
}

// subject is what a prompt describes.
type subject struct {
	kind    string
	title   string
	authors []string
	year    string
	venue   string
}

// Paper summarizes the full text of an academic paper.
func (g *Generator) Paper(ctx context.Context, text string, p reference.Paper) (Synthesis, error) {
	authors := make([]string, len(p.Authors))
	for i, a := range p.Authors {
		authors[i] = a.FullName()
	}
	year := "Unknown"
	if p.Year > 0 {
		year = strconv.Itoa(p.Year)
	}
	return g.generate(ctx, text, subject{
		kind:    "academic paper",
		title:   p.Title,
		authors: authors,
		year:    year,
		venue:   p.Venue,
	})
}

// Article summarizes the markdown content of a web article.
func (g *Generator) Article(ctx context.Context, text string, a reference.Article) (Synthesis, error) {
	year := "Unknown"
	if a.PublishedDate != nil {
		year = strconv.Itoa(a.PublishedDate.Year())
	}
	return g.generate(ctx, text, subject{
		kind:    "article",
		title:   a.Title,
		authors: a.Authors,
		year:    year,
		venue:   a.Publisher,
	})
}

func (g *Generator) generate(ctx context.Context, text string, s subject) (Synthesis, error) {
	completion, err := g.completer.Complete(ctx, buildPrompt(text, s), g.maxTokens)
	if err != nil {
		return Synthesis{}, fmt.Errorf("generating synthesis: %w", err)
	}

	syn, err := ParseResponse(completion.Text)
	if err != nil {
		return Synthesis{}, err
	}
	syn.GeneratedAt = g.now()
	syn.Model = completion.Model
	syn.CostUSD = Cost(completion.InputTokens, completion.OutputTokens)
	return syn, nil
}

func formatAuthors(authors []string) string {
	switch {
	case len(authors) == 0:
		return "Unknown"
	case len(authors) > 3:
		return authors[0] + " et al."
	default:
		return strings.Join(authors, ", ")
	}
}

// truncateUTF8 cuts text to at most maxLen bytes on a rune boundary.
func truncateUTF8(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	for maxLen > 0 && !utf8.RuneStart(text[maxLen]) {
		maxLen--
	}
	return text[:maxLen]
}

func buildPrompt(text string, s subject) string {
	venueLine := ""
	if s.venue != "" {
		venueLine = "\nVenue: " + s.venue
	}

	return fmt.Sprintf(`I need you to analyze this %s and provide a structured synthesis.

Title: "%s"
Authors: %s
Year: %s%s

Please read the text below and provide:

1. SUMMARY: A 3-4 sentence overview of the main contribution and findings. Focus on what they did and what they found.

2. WHY_YOU_CARED: 2-3 sentences explaining why this would be relevant to someone researching %s. What makes it interesting or important?

3. KEY_CONCEPTS: 5-8 key terms or concepts that would be useful as tags. Use lowercase, hyphenated format (e.g., "neural-networks", "attention-mechanism"). These should be searchable concepts.

4. MEMORABLE_QUOTE: One standout sentence or phrase from the text that captures something important. Use the exact wording from the text. Include quotation marks.

Text (%d characters):
---
%s
---

Please format your response exactly like this:

<summary>
Your 3-4 sentence summary here.
</summary>

<why_you_cared>
Your 2-3 sentence explanation here.
</why_you_cared>

<key_concepts>
concept-1, concept-2, concept-3, concept-4, concept-5
</key_concepts>

<memorable_quote>
"Your exact quote from the text here."
</memorable_quote>

Make sure to use the exact XML-style tags shown above.`,
		s.kind, s.title, formatAuthors(s.authors), s.year, venueLine,
		ResearchArea(s.title, s.venue), len(text), truncateUTF8(text, MaxTextChars))
}

var tagPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, tag := range []string{"summary", "why_you_cared", "key_concepts", "memorable_quote"} {
		tagPatterns[tag] = regexp.MustCompile(`(?s)<` + tag + `>(.*?)</` + tag + `>`)
	}
}

func extractTag(tag, text string) string {
	m := tagPatterns[tag].FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ParseResponse extracts the tagged sections of a model answer. Only the
// summary is required.
func ParseResponse(text string) (Synthesis, error) {
	syn := Synthesis{
		Summary:        extractTag("summary", text),
		WhyYouCared:    extractTag("why_you_cared", text),
		MemorableQuote: strings.TrimSpace(strings.Trim(extractTag("memorable_quote", text), `"'“”`)),
	}
	if syn.Summary == "" {
		return Synthesis{}, ErrMalformedResponse
	}
	if syn.WhyYouCared == "" {
		syn.WhyYouCared = notSpecified
	}

	for _, c := range strings.Split(extractTag("key_concepts", text), ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		syn.KeyConcepts = append(syn.KeyConcepts, c)
		if len(syn.KeyConcepts) == MaxConcepts {
			break
		}
	}
	return syn, nil
}

// Cost returns the USD price of a call, rounded to four decimals.
func Cost(inputTokens, outputTokens int) float64 {
	cost := float64(inputTokens)/1e6*InputPricePerMTok + float64(outputTokens)/1e6*OutputPricePerMTok
	return math.Round(cost*1e4) / 1e4
}
