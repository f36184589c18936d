package domain

import "time"

// QuestionType discriminates how a question's correctness is judged.
type QuestionType string

const (
	// SingleChoice questions are correct iff exactly one answer is selected
	// and that answer carries a positive score.
	SingleChoice QuestionType = "SINGLE_CHOICE"
	// MultipleChoices questions are correct iff the selected answer set equals
	// the correct answer set exactly.
	MultipleChoices QuestionType = "MULTIPLE_CHOICES"
)

// Contest is a named quiz instance containing ordered questions.
type Contest struct {
	ID                    string     `json:"id"`
	Slug                  string     `json:"slug"`
	Name                  string     `json:"name"`
	Description           string     `json:"description,omitempty"`
	Active                bool       `json:"active"`
	AllowMultipleAttempts bool       `json:"allowMultipleAttempts"`
	TimeLimitMinutes      int        `json:"timeLimitMinutes,omitempty"` // 0 means no limit; enforced client-side only
	Questions             []Question `json:"questions"`
}

// Question is a single prompt with its selectable answers, ordered within the contest.
type Question struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Content  string       `json:"content,omitempty"` // markdown body
	Type     QuestionType `json:"type"`
	Position int          `json:"position"`
	Answers  []Answer     `json:"answers"`
}

// Answer is a selectable option. Score > 0 marks it as correct; the sum of the
// selected scores is the question's contribution when answered correctly.
type Answer struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Score    int    `json:"score"`
	Position int    `json:"position"`
}

// CorrectAnswerIDs returns the ids of the question's correct answers, in answer order.
func (q Question) CorrectAnswerIDs() []string {
	ids := make([]string, 0, len(q.Answers))
	for _, a := range q.Answers {
		if a.Score > 0 {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// Attempt is one completed submission by one user for one contest. Attempts
// are immutable once written; they are the durable record of a submission.
type Attempt struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	ContestID      string    `json:"contestId"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
	Score          int       `json:"score"`
	CorrectCount   int       `json:"correctCount"`
	TotalQuestions int       `json:"totalQuestions"`
}

// UserAnswer records one selected answer of an attempt. Score is copied from
// the answer at submission time so later admin edits never rewrite history.
type UserAnswer struct {
	ID         string `json:"id"`
	AttemptID  string `json:"attemptId"`
	QuestionID string `json:"questionId"`
	AnswerID   string `json:"answerId"`
	Score      int    `json:"score"`
	IsCorrect  bool   `json:"isCorrect"` // whether the owning question was answered correctly
}

// QuestionResult is the per-question outcome of evaluating a submission.
type QuestionResult struct {
	QuestionID        string   `json:"questionId"`
	SelectedAnswerIDs []string `json:"selectedAnswerIds"`
	CorrectAnswerIDs  []string `json:"correctAnswerIds"`
	IsCorrect         bool     `json:"isCorrect"`
	Awarded           int      `json:"awarded"`
}

// Evaluation aggregates the scoring outcome of a whole submission.
type Evaluation struct {
	TotalScore     int              `json:"score"`
	TotalQuestions int              `json:"totalQuestions"`
	CorrectCount   int              `json:"correctCount"`
	Results        []QuestionResult `json:"results"`
}

// LeaderboardEntry is one user's standing in a contest.
type LeaderboardEntry struct {
	UserID       string    `json:"userId"`
	Score        int       `json:"score"`
	CorrectCount int       `json:"correctCount"`
	FinishedAt   time.Time `json:"finishedAt"`
}

// Leaderboard captures the ordered standings for a contest.
type Leaderboard struct {
	ContestID string             `json:"contestId"`
	Slug      string             `json:"slug"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// QuestionStat is the per-question analytics row admins see.
type QuestionStat struct {
	QuestionID  string  `json:"questionId"`
	Title       string  `json:"title"`
	Position    int     `json:"position"`
	Answered    int     `json:"answered"`
	Correct     int     `json:"correct"`
	CorrectRate float64 `json:"correctRate"`
}

// ContestStats bundles the per-question aggregates for one contest.
type ContestStats struct {
	ContestID     string         `json:"contestId"`
	Slug          string         `json:"slug"`
	TotalAttempts int            `json:"totalAttempts"`
	Questions     []QuestionStat `json:"questions"`
}

// AnswerTally is the raw per-question count pair analytics queries return.
type AnswerTally struct {
	Answered int
	Correct  int
}
