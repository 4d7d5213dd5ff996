package series

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tazama/core"
	"github.com/trezcool/tazama/core/exam"
)

var (
	// errors
	ErrNotFound        = errors.New("series not found")
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrEpisodeLocked   = errors.New("episode is locked")

	errExamNotFound = "exam not found"

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateSeries(ctx context.Context, s Series, exec ...core.DBExecutor) (Series, error)
		GetSeries(ctx context.Context, id string, exec ...core.DBExecutor) (Series, error)
		// QuerySeries applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Series.Title or Series.Description.
		QuerySeries(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Series, error)
		DeleteSeries(ctx context.Context, id string, exec ...core.DBExecutor) error

		// AppendEpisode inserts ep right after the series' last episode, setting its OrderInSeries.
		// Concurrent appends to the same series are serialized. Returns ErrNotFound for an unknown series.
		AppendEpisode(ctx context.Context, ep Episode, exec ...core.DBExecutor) (Episode, error)
		GetEpisode(ctx context.Context, id string, exec ...core.DBExecutor) (Episode, error)
		UpdateEpisode(ctx context.Context, ep Episode, exec ...core.DBExecutor) (Episode, error)
		DeleteEpisode(ctx context.Context, id string, exec ...core.DBExecutor) error
		// QueryEpisodes returns the series' episodes ordered by OrderInSeries.
		QueryEpisodes(ctx context.Context, seriesID string, exec ...core.DBExecutor) ([]Episode, error)
		// QueryEpisodesByExam returns the episodes linked to the exam.
		QueryEpisodesByExam(ctx context.Context, examID string, exec ...core.DBExecutor) ([]Episode, error)
		// ShiftEpisodesDown moves every episode of the series ordered after `after` one position up the list.
		ShiftEpisodesDown(ctx context.Context, seriesID string, after int, exec ...core.DBExecutor) error
	}

	// ExamService is what the series service needs to know about exams.
	ExamService interface {
		Get(ctx context.Context, id string) (exam.Exam, error)
		PassedExamIDs(ctx context.Context, userID string, examIDs []string, exec ...core.DBExecutor) (exam.IDSet, error)
	}

	Service struct {
		tx      core.Transactor
		repo    Repository
		exams   ExamService
		mailSvc core.EmailService
	}
)

func NewService(tx core.Transactor, repo Repository, exams ExamService, mailSvc core.EmailService) *Service {
	return &Service{tx: tx, repo: repo, exams: exams, mailSvc: mailSvc}
}

func (svc *Service) Create(ctx context.Context, authorID string, ns NewSeries) (Series, error) {
	now := NowFunc().UTC()
	s, err := svc.repo.CreateSeries(ctx, Series{
		Title:       ns.Title,
		Description: ns.Description,
		AuthorID:    authorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return s, errors.Wrap(err, "creating series")
}

func (svc *Service) Get(ctx context.Context, id string) (Series, error) {
	return svc.repo.GetSeries(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Series, error) {
	return svc.repo.QuerySeries(ctx, filter, ordering)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteSeries(ctx, id)
}

func (svc *Service) GetEpisode(ctx context.Context, id string) (Episode, error) {
	return svc.repo.GetEpisode(ctx, id)
}

// AddEpisode appends a new episode at the end of the series.
func (svc *Service) AddEpisode(ctx context.Context, seriesID, authorID string, ne NewEpisode) (Episode, error) {
	ref, err := svc.examRef(ctx, ne.ExamID)
	if err != nil {
		return Episode{}, err
	}

	now := NowFunc().UTC()
	ep := Episode{
		SeriesID:             seriesID,
		Title:                ne.Title,
		Content:              ne.Content,
		AuthorID:             authorID,
		IsLockedByDefault:    ne.IsLockedByDefault == nil || *ne.IsLockedByDefault,
		RequiresExamToUnlock: ne.RequiresExamToUnlock,
		Exam:                 ref,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = svc.tx.RunInTx(ctx, false, func(exec core.DBExecutor) error {
		ep, err = svc.repo.AppendEpisode(ctx, ep, exec)
		return err
	})
	if err != nil {
		return Episode{}, errors.Wrap(err, "adding episode")
	}
	return ep, nil
}

func (svc *Service) UpdateEpisode(ctx context.Context, id string, ue UpdateEpisode) (Episode, error) {
	var ref *ExamRef
	if ue.ExamID != nil {
		var err error
		if ref, err = svc.examRef(ctx, *ue.ExamID); err != nil {
			return Episode{}, err
		}
	}

	var ep Episode
	err := svc.tx.RunInTx(ctx, false, func(exec core.DBExecutor) error {
		var err error
		if ep, err = svc.repo.GetEpisode(ctx, id, exec); err != nil {
			return err
		}

		if ue.Title != nil {
			ep.Title = *ue.Title
		}
		if ue.Content != nil {
			ep.Content = *ue.Content
		}
		if ue.IsLockedByDefault != nil {
			ep.IsLockedByDefault = *ue.IsLockedByDefault
		}
		if ue.RequiresExamToUnlock != nil {
			ep.RequiresExamToUnlock = *ue.RequiresExamToUnlock
		}
		if ue.ExamID != nil {
			ep.Exam = ref
		}
		ep.UpdatedAt = NowFunc().UTC()

		ep, err = svc.repo.UpdateEpisode(ctx, ep, exec)
		return err
	})
	if err != nil {
		return Episode{}, errors.Wrap(err, "updating episode")
	}
	return ep, nil
}

// RemoveEpisode deletes the episode and closes the gap it leaves in the series order.
func (svc *Service) RemoveEpisode(ctx context.Context, id string) error {
	err := svc.tx.RunInTx(ctx, false, func(exec core.DBExecutor) error {
		ep, err := svc.repo.GetEpisode(ctx, id, exec)
		if err != nil {
			return err
		}
		if err = svc.repo.DeleteEpisode(ctx, id, exec); err != nil {
			return err
		}
		return svc.repo.ShiftEpisodesDown(ctx, ep.SeriesID, ep.OrderInSeries, exec)
	})
	return errors.Wrap(err, "removing episode")
}

// GetWithLocks returns the series and its episodes, each flagged locked or not for viewer.
// Everything is read within one read-only transaction so locks are computed on a consistent snapshot.
func (svc *Service) GetWithLocks(ctx context.Context, seriesID string, viewer Viewer) (SeriesAccess, error) {
	var access SeriesAccess
	err := svc.tx.RunInTx(ctx, true, func(exec core.DBExecutor) error {
		s, err := svc.repo.GetSeries(ctx, seriesID, exec)
		if err != nil {
			return err
		}
		episodes, passed, err := svc.episodesAndPasses(ctx, seriesID, viewer, exec)
		if err != nil {
			return err
		}
		access = SeriesAccess{Series: s, Episodes: ComputeEpisodeLocks(episodes, viewer, passed)}
		return nil
	})
	if err != nil {
		return SeriesAccess{}, errors.Wrap(err, "getting series with locks")
	}
	return access, nil
}

// ViewEpisode returns the episode with its content rendered, or ErrEpisodeLocked if viewer may not see it.
func (svc *Service) ViewEpisode(ctx context.Context, episodeID string, viewer Viewer) (RenderedEpisode, error) {
	var ep Episode
	err := svc.tx.RunInTx(ctx, true, func(exec core.DBExecutor) error {
		var err error
		if ep, err = svc.repo.GetEpisode(ctx, episodeID, exec); err != nil {
			return err
		}
		episodes, passed, err := svc.episodesAndPasses(ctx, ep.SeriesID, viewer, exec)
		if err != nil {
			return err
		}
		for _, acc := range ComputeEpisodeLocks(episodes, viewer, passed) {
			if acc.ID == episodeID {
				if acc.IsLocked {
					return ErrEpisodeLocked
				}
				ep = acc.Episode
				return nil
			}
		}
		return ErrEpisodeNotFound
	})
	if err != nil {
		return RenderedEpisode{}, errors.Wrap(err, "viewing episode")
	}

	html, err := RenderContent(ep.Content)
	if err != nil {
		return RenderedEpisode{}, errors.Wrap(err, "rendering episode content")
	}
	return RenderedEpisode{Episode: ep, ContentHTML: html}, nil
}

func (svc *Service) episodesAndPasses(ctx context.Context, seriesID string, viewer Viewer, exec core.DBExecutor) ([]Episode, exam.IDSet, error) {
	episodes, err := svc.repo.QueryEpisodes(ctx, seriesID, exec)
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying episodes")
	}

	passed := exam.IDSet{}
	if userID, ok := viewer.ID(); ok {
		if examIDs := GatingExamIDs(episodes); len(examIDs) > 0 {
			if passed, err = svc.exams.PassedExamIDs(ctx, userID, examIDs, exec); err != nil {
				return nil, nil, errors.Wrap(err, "finding passed exams")
			}
		}
	}
	return episodes, passed, nil
}

func (svc *Service) examRef(ctx context.Context, examID string) (*ExamRef, error) {
	if examID == "" {
		return nil, nil
	}
	e, err := svc.exams.Get(ctx, examID)
	if err != nil {
		if errors.Cause(err) == exam.ErrNotFound {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "exam_id", Error: errExamNotFound})
		}
		return nil, errors.Wrap(err, "getting exam")
	}
	return &ExamRef{ID: e.ID, Title: e.Title}, nil
}
