package upstream

import (
	"fmt"

	"github.com/petrijr/studyflow/pkg/api"
)

// Keys that may carry the index of the correct option.
var answerIndexKeys = []string{"answer_index", "answerIndex", "correct_index", "answer"}

const defaultPrompt = "Question"

// CoerceQuestion turns a loosely shaped question object into a Question
// with exactly api.OptionsPerQuestion options and a valid CorrectIndex.
func CoerceQuestion(v Value) api.Question {
	prompt := ""
	for _, k := range []string{"q", "question"} {
		if f, ok := v.Get(k); ok && f.Truthy() {
			prompt = f.Text()
			break
		}
	}
	if prompt == "" {
		prompt = defaultPrompt
	}

	options := make([]string, 0, api.OptionsPerQuestion)
	if f, ok := v.Get("options"); ok {
		for _, o := range f.Items() {
			if len(options) == api.OptionsPerQuestion {
				break
			}
			options = append(options, o.Text())
		}
	}
	for len(options) < api.OptionsPerQuestion {
		options = append(options, fmt.Sprintf("Option %d", len(options)+1))
	}

	idx := 0
	for _, k := range answerIndexKeys {
		f, ok := v.Get(k)
		if !ok {
			continue
		}
		if n, ok := f.Int(); ok && n >= 0 && n < api.OptionsPerQuestion {
			idx = n
		}
		break
	}

	return api.Question{Prompt: prompt, Options: options, CorrectIndex: idx}
}

// QuestionsFromPayload extracts and coerces the questions of a quiz
// response. A top-level "questions" list is used as is; otherwise the whole
// payload is searched for question objects. Items that are not objects are
// dropped. It returns nil when nothing usable was found.
func QuestionsFromPayload(payload Value) []api.Question {
	payload = payload.Unwrap()

	var raw []Value
	if list, ok := payload.Get("questions"); ok {
		for _, it := range list.Unwrap().Items() {
			if it.Kind() == KindObject {
				raw = append(raw, it)
			}
		}
	}
	if len(raw) == 0 {
		raw = FindQuestions(payload)
	}
	if len(raw) == 0 {
		return nil
	}

	out := make([]api.Question, len(raw))
	for i, r := range raw {
		out[i] = CoerceQuestion(r)
	}
	return out
}

// FakeQuestions builds n placeholder questions about topic. n is raised to
// at least one.
func FakeQuestions(n int, topic string) []api.Question {
	if n < 1 {
		n = 1
	}
	out := make([]api.Question, n)
	for i := range out {
		out[i] = api.Question{
			Prompt:       fmt.Sprintf("%d. Topic: %s. Choose the correct option.", i+1, topic),
			Options:      []string{"A", "B", "C", "D"},
			CorrectIndex: 0,
		}
	}
	return out
}

// PlaceholderSummary is the markdown returned when no summary could be
// obtained.
func PlaceholderSummary(topic string) string {
	return fmt.Sprintf("# %s\n_Summary placeholder._", topic)
}
