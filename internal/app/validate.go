package app

import (
	"fmt"
	"time"

	"quiz-contest-service/internal/domain"
)

// SubmissionPayload is the wire shape of a submission as posted by clients.
type SubmissionPayload struct {
	Answers   []SelectionPayload `json:"answers"`
	StartedAt string             `json:"startedAt"`
}

// SelectionPayload carries one question's selected answer ids.
type SelectionPayload struct {
	QuestionID string   `json:"questionId"`
	AnswerIDs  []string `json:"answerIds"`
}

// ValidatedSubmission is a payload that passed structural validation. Scoring
// and persistence only ever see this form, never the raw payload.
type ValidatedSubmission struct {
	Selections map[string][]string
	StartedAt  time.Time
}

// ValidateSubmission checks the payload's structure up front so the coordinator
// stays free of validation branching. Unknown question ids are NOT rejected
// here; the scoring engine skips them silently.
func ValidateSubmission(payload SubmissionPayload) (ValidatedSubmission, error) {
	startedAt, err := time.Parse(time.RFC3339, payload.StartedAt)
	if err != nil {
		return ValidatedSubmission{}, fmt.Errorf("%w: startedAt must be RFC3339", domain.ErrInvalidSubmission)
	}

	selections := make(map[string][]string, len(payload.Answers))
	for i, entry := range payload.Answers {
		if entry.QuestionID == "" {
			return ValidatedSubmission{}, fmt.Errorf("%w: answers[%d] missing questionId", domain.ErrInvalidSubmission, i)
		}
		if len(entry.AnswerIDs) == 0 {
			return ValidatedSubmission{}, fmt.Errorf("%w: answers[%d] has no answerIds", domain.ErrInvalidSubmission, i)
		}
		for _, id := range entry.AnswerIDs {
			if id == "" {
				return ValidatedSubmission{}, fmt.Errorf("%w: answers[%d] contains an empty answer id", domain.ErrInvalidSubmission, i)
			}
		}
		if _, dup := selections[entry.QuestionID]; dup {
			return ValidatedSubmission{}, fmt.Errorf("%w: duplicate entry for question %s", domain.ErrInvalidSubmission, entry.QuestionID)
		}
		selections[entry.QuestionID] = entry.AnswerIDs
	}

	return ValidatedSubmission{Selections: selections, StartedAt: startedAt}, nil
}
