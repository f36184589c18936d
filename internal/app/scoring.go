package app

import (
	"quiz-contest-service/internal/domain"
)

// Evaluate scores a submission against a contest's question catalog. It is a
// pure function: same catalog and selections always yield the same evaluation.
//
// Rules:
//   - selections maps question id -> selected answer ids; ids that do not
//     belong to the question are filtered out, entries for unknown question
//     ids are ignored, and questions missing from the map count as unanswered
//     (incorrect, contributing 0).
//   - SINGLE_CHOICE is correct iff exactly one answer was selected and its
//     score is positive.
//   - MULTIPLE_CHOICES is correct iff the selected set equals the correct set
//     (answers with score > 0) exactly; no partial credit either way.
//   - A correct question awards the sum of its selected answers' scores; an
//     incorrect question awards 0 regardless of individual answer scores.
func Evaluate(questions []domain.Question, selections map[string][]string) domain.Evaluation {
	eval := domain.Evaluation{
		TotalQuestions: len(questions),
		Results:        make([]domain.QuestionResult, 0, len(questions)),
	}

	for _, question := range questions {
		selected := matchSelections(question, selections[question.ID])
		correctIDs := question.CorrectAnswerIDs()

		result := domain.QuestionResult{
			QuestionID:        question.ID,
			SelectedAnswerIDs: selectedIDs(selected),
			CorrectAnswerIDs:  correctIDs,
		}

		switch question.Type {
		case domain.SingleChoice:
			result.IsCorrect = len(selected) == 1 && selected[0].Score > 0
		case domain.MultipleChoices:
			// Unanswered questions are always incorrect, even for a question
			// whose correct set happens to be empty.
			result.IsCorrect = len(selected) > 0 && sameIDSet(result.SelectedAnswerIDs, correctIDs)
		}

		if result.IsCorrect {
			for _, answer := range selected {
				result.Awarded += answer.Score
			}
			eval.CorrectCount++
			eval.TotalScore += result.Awarded
		}

		eval.Results = append(eval.Results, result)
	}

	return eval
}

// matchSelections resolves submitted ids to the question's own answers,
// dropping duplicates and ids belonging to other questions.
func matchSelections(question domain.Question, ids []string) []domain.Answer {
	if len(ids) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	selected := make([]domain.Answer, 0, len(wanted))
	for _, answer := range question.Answers {
		if _, ok := wanted[answer.ID]; ok {
			selected = append(selected, answer)
		}
	}
	return selected
}

func selectedIDs(answers []domain.Answer) []string {
	ids := make([]string, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.ID)
	}
	return ids
}

func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	if len(set) != len(b) {
		return false
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
