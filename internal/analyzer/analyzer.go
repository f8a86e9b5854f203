package analyzer

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/zombar/aidetector/internal/models"
)

var (
	sentenceTerminators = regexp.MustCompile(`[.!?]+`)
	pronounPattern      = regexp.MustCompile(`(?i)\b(?:` + strings.Join(personalPronouns, "|") + `)\b`)
)

// Calculate derives TextStats from already preprocessed text.
// Empty input, or input without any word, yields the all-zero record.
func Calculate(text string) models.TextStats {
	if text == "" {
		return models.TextStats{}
	}

	words := extractWords(text)
	wordCount := len(words)
	if wordCount == 0 {
		return models.TextStats{}
	}

	sentenceCount := countSentences(text)
	syllableCount := countSyllables(words)

	return models.TextStats{
		Words:               wordCount,
		Sentences:           sentenceCount,
		AvgWordsPerSentence: float64(wordCount) / float64(sentenceCount),
		LongWords:           countLongWords(words),
		PersonalPronouns:    len(pronounPattern.FindAllString(text, -1)),
		ReadabilityScore:    calculateReadability(wordCount, sentenceCount, syllableCount),
		LexicalDiversity:    round(float64(countUniqueWords(words))/float64(wordCount), 2),
	}
}

// extractWords splits text into space-delimited tokens
func extractWords(text string) []string {
	return strings.Fields(text)
}

// countSentences counts runs of terminal punctuation, at least one
func countSentences(text string) int {
	matches := sentenceTerminators.FindAllString(text, -1)
	if len(matches) == 0 {
		return 1
	}
	return len(matches)
}

func countLongWords(words []string) int {
	count := 0
	for _, word := range words {
		if utf8.RuneCountInString(word) > longWordLength {
			count++
		}
	}
	return count
}

// countUniqueWords counts distinct tokens case-insensitively
func countUniqueWords(words []string) int {
	unique := make(map[string]bool, len(words))
	for _, word := range words {
		unique[strings.ToLower(word)] = true
	}
	return len(unique)
}

// countSyllables sums per-token estimates; the total is floored at 1
func countSyllables(words []string) int {
	total := 0
	for _, word := range words {
		total += countSyllablesInWord(word)
	}
	if total < 1 {
		return 1
	}
	return total
}

// countSyllablesInWord counts vowel groups with silent-e and -es/-ed adjustments.
// The result may be zero or negative; only the text total is floored.
func countSyllablesInWord(word string) int {
	word = strings.ToLower(word)

	count := 0
	prevWasVowel := false
	for _, char := range word {
		isVowel := strings.ContainsRune(vowels, char)
		if isVowel && !prevWasVowel {
			count++
		}
		prevWasVowel = isVowel
	}

	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") {
		count--
	}
	if strings.HasSuffix(word, "es") || strings.HasSuffix(word, "ed") {
		count--
	}

	return count
}

// calculateReadability returns a Flesch-Kincaid grade level rounded to one decimal
func calculateReadability(wordCount, sentenceCount, syllableCount int) float64 {
	if wordCount == 0 || sentenceCount == 0 {
		return 0
	}

	avgWordsPerSentence := float64(wordCount) / float64(sentenceCount)
	avgSyllablesPerWord := float64(syllableCount) / float64(wordCount)

	return round(0.39*avgWordsPerSentence+11.8*avgSyllablesPerWord-15.59, 1)
}

func round(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}
