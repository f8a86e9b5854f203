package detector

import (
	"strings"

	"github.com/zombar/aidetector/internal/models"
)

const (
	humanLeaningBelow = 30
	aiLeaningAbove    = 60
	shortSampleWords  = 15
)

// Interpret summarizes an AI probability and the text statistics in plain language
func Interpret(aiProbability float64, stats models.TextStats) string {
	var b strings.Builder

	if stats.Words < shortSampleWords {
		b.WriteString("Short sample: results may be less reliable. ")
	}

	switch {
	case aiProbability < humanLeaningBelow:
		b.WriteString("This text shows strong characteristics of human writing, with natural variation in style and structure.")
	case aiProbability <= aiLeaningAbove:
		b.WriteString("This text shows mixed characteristics; it may be human-written with AI assistance, or AI-generated and edited by a person.")
	default:
		b.WriteString("This text shows strong characteristics of AI-generated content, with uniform structure and formulaic phrasing.")
	}

	if stats.LexicalDiversity < 0.5 && stats.Words > 50 {
		b.WriteString(" Low vocabulary diversity suggests repetitive word choice.")
	}
	if stats.PersonalPronouns == 0 && stats.Words > 30 {
		b.WriteString(" The absence of personal pronouns is common in AI-generated text.")
	}
	if stats.ReadabilityScore > 12 {
		b.WriteString(" The high reading grade level indicates complex or formal writing.")
	}

	return b.String()
}
