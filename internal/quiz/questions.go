package quiz

import (
	"html"
	"math/rand"
	"strings"
	"time"

	"trivia-quiz/internal/opentdb"
)

// MaxOptions is the option count of a multiple-choice question.
const MaxOptions = 4

// Question is immutable once built. The JSON names are the persisted layout
// of the currentQuestions key.
type Question struct {
	Text               string   `json:"questionText"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctAnswerIndex"`
}

// Shuffler is satisfied by *rand.Rand. Tests inject a deterministic one.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

func NewRandomShuffler() Shuffler {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func NewSeededShuffler(seed int64) Shuffler {
	return rand.New(rand.NewSource(seed))
}

func BuildQuestions(raw []opentdb.RawQuestion, shuffler Shuffler) []Question {
	if shuffler == nil {
		shuffler = NewRandomShuffler()
	}

	questions := make([]Question, 0, len(raw))
	for _, item := range raw {
		questions = append(questions, buildQuestion(item, shuffler))
	}
	return questions
}

func buildQuestion(raw opentdb.RawQuestion, shuffler Shuffler) Question {
	type choice struct {
		text      string
		isCorrect bool
	}

	choices := make([]choice, 0, len(raw.IncorrectAnswers)+1)
	for _, incorrect := range raw.IncorrectAnswers {
		choices = append(choices, choice{
			text:      html.UnescapeString(incorrect),
			isCorrect: false,
		})
	}

	choices = append(choices, choice{
		text:      html.UnescapeString(raw.CorrectAnswer),
		isCorrect: true,
	})

	shuffler.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})

	options := make([]string, len(choices))
	correctIndex := -1

	for idx, candidate := range choices {
		options[idx] = candidate.text
		if candidate.isCorrect {
			correctIndex = idx
		}
	}

	return Question{
		Text:               html.UnescapeString(raw.Question),
		Options:            options,
		CorrectOptionIndex: correctIndex,
	}
}

func (q Question) Clone() Question {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	q.Options = options
	return q
}

// OptionLetter returns "A" for 0, "B" for 1 and so on.
func OptionLetter(index int) string {
	if index < 0 || index >= 26 {
		return ""
	}
	return string(rune('A' + index))
}

// ParseOptionLetter accepts a single letter (any case, surrounding spaces
// ignored) and returns its zero-based index.
func ParseOptionLetter(answer string) (int, bool) {
	letter := strings.ToUpper(strings.TrimSpace(answer))
	if len(letter) != 1 {
		return -1, false
	}
	if letter[0] < 'A' || letter[0] > 'Z' {
		return -1, false
	}
	return int(letter[0] - 'A'), true
}
