package series

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tazama/core"
)

type Series struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AuthorID    string    `json:"author_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// ExamRef links an Episode to the exam gating the episode after it.
type ExamRef struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

type Episode struct {
	ID                   string    `json:"id"`
	SeriesID             string    `json:"series_id"`
	Title                string    `json:"title"`
	Content              string    `json:"content,omitempty"`
	OrderInSeries        int       `json:"order_in_series"` // 1-based, dense & unique within a series
	AuthorID             string    `json:"author_id"`
	IsLockedByDefault    bool      `json:"is_locked_by_default"`
	RequiresExamToUnlock bool      `json:"requires_exam_to_unlock"`
	Exam                 *ExamRef  `json:"exam"`
	CreatedAt            time.Time `json:"created_at"` // UTC
	UpdatedAt            time.Time `json:"updated_at"` // UTC
}

// SeriesAccess is a Series with its episodes as seen by a viewer.
type SeriesAccess struct {
	Series
	Episodes []EpisodeAccess `json:"episodes"`
}

// NewSeries contains information needed to create a new Series.
type NewSeries struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description"`
}

func (ns *NewSeries) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	ns.Description = core.CleanString(ns.Description)
	return validate.Struct(ns)
}

// NewEpisode contains information needed to append an Episode to a Series.
type NewEpisode struct {
	Title                string `json:"title" validate:"required,max=255"`
	Content              string `json:"content"`
	IsLockedByDefault    *bool  `json:"is_locked_by_default"` // defaults to true
	RequiresExamToUnlock bool   `json:"requires_exam_to_unlock"`
	ExamID               string `json:"exam_id" validate:"omitempty,uuid"`
}

func (ne *NewEpisode) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.ExamID = core.CleanString(ne.ExamID)
	return validate.Struct(ne)
}

// UpdateEpisode defines what information may be provided to modify an existing Episode.
// nil fields are left untouched; an empty ExamID unlinks the exam.
type UpdateEpisode struct {
	Title                *string `json:"title" validate:"omitempty,max=255"`
	Content              *string `json:"content"`
	IsLockedByDefault    *bool   `json:"is_locked_by_default"`
	RequiresExamToUnlock *bool   `json:"requires_exam_to_unlock"`
	ExamID               *string `json:"exam_id"`
}

func (ue *UpdateEpisode) Validate(validate *validator.Validate) error {
	if ue.Title != nil {
		title := core.CleanString(*ue.Title)
		if title == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field cannot be blank"})
		}
		ue.Title = &title
	}
	if ue.ExamID != nil {
		id := core.CleanString(*ue.ExamID)
		ue.ExamID = &id
	}
	return validate.Struct(ue)
}

type QueryFilter struct {
	Search   string `query:"search"`
	AuthorID string `query:"author"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.AuthorID = core.CleanString(qf.AuthorID)
}
