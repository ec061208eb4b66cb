package resolver

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/campusbot/internal/textnorm"
)

const (
	// MinLearnMessageLen and MinLearnAnswerLen are rune counts.
	MinLearnMessageLen = 10
	MinLearnAnswerLen  = 50
	LearnedKeywordMin  = 3
	LearnedKeywordMax  = 10
)

// errorMarker in an answer marks a failure report. Matched case-sensitively.
const errorMarker = "Error"

// apologyPhrases are lowercase phrases of answers that found nothing.
var apologyPhrases = []string{
	"no pude encontrar",
	"no encontré",
	"no tengo información",
	"lo siento, no",
}

// greetingTokens are normalized phrases that mark a message as small talk.
var greetingTokens = []string{
	"hola", "buenas", "buenos dias", "buen dia", "buenas tardes", "buenas noches",
	"saludos", "hey", "hello", "hi", "gracias",
}

// Reasons returned by ShouldLearn.
const (
	ReasonAccepted        = "accepted"
	ReasonMessageTooShort = "message_too_short"
	ReasonAnswerTooShort  = "answer_too_short"
	ReasonErrorAnswer     = "error_answer"
	ReasonGreeting        = "greeting"
)

// ShouldLearn decides whether a generated answer is worth storing as a
// learned entry and reports why.
func ShouldLearn(message, answer string) (bool, string) {
	if utf8.RuneCountInString(strings.TrimSpace(message)) < MinLearnMessageLen {
		return false, ReasonMessageTooShort
	}
	if utf8.RuneCountInString(strings.TrimSpace(answer)) < MinLearnAnswerLen {
		return false, ReasonAnswerTooShort
	}
	if strings.Contains(answer, errorMarker) {
		return false, ReasonErrorAnswer
	}
	lower := strings.ToLower(answer)
	for _, phrase := range apologyPhrases {
		if strings.Contains(lower, phrase) {
			return false, ReasonErrorAnswer
		}
	}
	for _, g := range greetingTokens {
		if textnorm.ContainsToken(message, g) {
			return false, ReasonGreeting
		}
	}
	return true, ReasonAccepted
}

// LearnedKeywords returns the keywords stored with a learned entry: the first
// LearnedKeywordMax distinct non-stopword tokens longer than LearnedKeywordMin.
func LearnedKeywords(message string) []string {
	return textnorm.ExtractKeywords(message, LearnedKeywordMin, LearnedKeywordMax)
}
