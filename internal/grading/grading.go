// Package grading scores submitted answers against a quiz answer key.
// Grade has no I/O and no shared state, so it is safe to call from
// request handlers, background jobs and offline tools alike.
package grading

import (
	"strings"

	"quizhub_backend/internal/model"
)

// Answer is one submitted answer as received from a client.
type Answer struct {
	QuestionID  string          `json:"questionId"`
	Selected    model.Selection `json:"selected"`
	TimeSpentMs int64           `json:"timeSpentMs"`
}

type Result struct {
	TotalScore  int                  `json:"totalScore"`
	TimeSpentMs int64                `json:"timeSpentMs"`
	Answers     []model.AnswerRecord `json:"answers"`
}

// Grade is answer-driven: every submitted answer yields one record, in
// submission order, and questions without an answer are not synthesized.
// IsCorrect reflects value equality alone. When a question is answered more
// than once, only its first correct answer carries marks; later correct
// repeats stay IsCorrect with MarksObtained 0.
func Grade(quiz *model.Quiz, answers []Answer) Result {
	byID := make(map[string]*model.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		if _, exists := byID[q.ID]; !exists {
			byID[q.ID] = q
		}
	}

	result := Result{Answers: make([]model.AnswerRecord, 0, len(answers))}
	credited := make(map[string]bool, len(answers))

	for _, a := range answers {
		record := model.AnswerRecord{
			QuestionID:  a.QuestionID,
			Selected:    a.Selected,
			TimeSpentMs: a.TimeSpentMs,
		}
		if record.TimeSpentMs < 0 {
			record.TimeSpentMs = 0
		}
		result.TimeSpentMs += record.TimeSpentMs

		q, ok := byID[a.QuestionID]
		if !ok {
			result.Answers = append(result.Answers, record)
			continue
		}

		selected, correct := gradeOne(q, a.Selected)
		record.Selected = selected
		record.IsCorrect = correct
		if correct && !credited[q.ID] {
			credited[q.ID] = true
			record.MarksObtained = marksOf(q)
		}

		result.TotalScore += record.MarksObtained
		result.Answers = append(result.Answers, record)
	}

	return result
}

func marksOf(q *model.Question) int {
	if q.Marks < 0 {
		return 0
	}
	return q.Marks
}

// gradeOne 返回归一化后的 selected 以及是否正确；未知题型一律判错
func gradeOne(q *model.Question, selected model.Selection) (model.Selection, bool) {
	switch q.Type {
	case model.QuestionTypeMultipleChoice:
		value, ok := singleValue(selected)
		if !ok {
			return model.NoSelection(), false
		}
		key, keyOK := singleValue(q.CorrectAnswer)
		return model.Scalar(value), keyOK && strings.TrimSpace(value) == strings.TrimSpace(key)

	case model.QuestionTypeTrueFalse:
		value, ok := singleValue(selected)
		if !ok {
			return model.NoSelection(), false
		}
		key, keyOK := singleValue(q.CorrectAnswer)
		return model.Scalar(value), keyOK && strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(key))

	case model.QuestionTypeCheckbox:
		if selected.Kind() != model.SelectionSet {
			return model.Set(), false
		}
		values := dedupe(selected.Values())
		if q.CorrectAnswer.Kind() != model.SelectionSet {
			return model.Set(values...), false
		}
		return model.Set(values...), sameSet(values, dedupe(q.CorrectAnswer.Values()))
	}

	return selected, false
}

// singleValue unwraps a scalar or a one-element set.
func singleValue(s model.Selection) (string, bool) {
	switch s.Kind() {
	case model.SelectionScalar:
		return s.Text(), true
	case model.SelectionSet:
		values := s.Values()
		if len(values) == 1 {
			return values[0], true
		}
	}
	return "", false
}

// dedupe keeps first-seen order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	for _, v := range a {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}
