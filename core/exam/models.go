package exam

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tazama/core"
)

type Exam struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	AuthorID  string     `json:"author_id"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"created_at"` // UTC
	UpdatedAt time.Time  `json:"updated_at"` // UTC
}

// TotalPoints is the sum of the points of all the exam's questions.
func (e Exam) TotalPoints() int {
	return TotalPoints(e.Questions)
}

type Question struct {
	ID       string   `json:"id"`
	ExamID   string   `json:"exam_id"`
	Prompt   string   `json:"prompt"`
	Choices  []string `json:"choices"`
	Answer   int      `json:"-"` // index in Choices
	Points   int      `json:"points"`
	Position int      `json:"position"`
}

type Submission struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	ExamID    string         `json:"exam_id"`
	Score     float64        `json:"score"`
	Answers   map[string]int `json:"answers"`    // {questionID: choice index}
	CreatedAt time.Time      `json:"created_at"` // UTC
}

// IDSet is a set of exam IDs.
type IDSet map[string]struct{}

func NewIDSet(ids ...string) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

func (s IDSet) Add(id string) { s[id] = struct{}{} }

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the set's IDs, sorted.
func (s IDSet) Slice() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewExam contains information needed to create a new Exam.
type NewExam struct {
	Title     string        `json:"title" validate:"required,max=255"`
	Questions []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

type NewQuestion struct {
	Prompt  string   `json:"prompt" validate:"required"`
	Choices []string `json:"choices" validate:"required,min=2,dive,required"`
	Answer  int      `json:"answer" validate:"min=0"`
	Points  int      `json:"points" validate:"min=0"`
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	for i := range ne.Questions {
		q := &ne.Questions[i]
		q.Prompt = core.CleanString(q.Prompt)
		for j := range q.Choices {
			q.Choices[j] = core.CleanString(q.Choices[j])
		}
	}
	return validate.Struct(ne)
}

// NewSubmission holds a user's answers to an exam.
type NewSubmission struct {
	Answers map[string]int `json:"answers" validate:"required"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	return validate.Struct(ns)
}

// SubmissionResult is the graded outcome of a Submission.
type SubmissionResult struct {
	Submission  Submission `json:"submission"`
	TotalPoints int        `json:"total_points"`
	Percentage  float64    `json:"percentage"`
	Passed      bool       `json:"passed"`
	// FirstPass is true when this submission is the user's first passing one for the exam.
	FirstPass bool `json:"first_pass"`
}
