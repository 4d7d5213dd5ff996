package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/tazama/core"
	"github.com/trezcool/tazama/core/series"
)

type seriesRepository struct {
	db *seriesTable
}

var _ series.Repository = (*seriesRepository)(nil) // interface compliance check

func NewSeriesRepository(db *DB) *seriesRepository {
	return &seriesRepository{db: db.series}
}

func (repo *seriesRepository) CreateSeries(_ context.Context, s series.Series, _ ...core.DBExecutor) (series.Series, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s.ID = newID()
	repo.db.series[s.ID] = &s
	return s, nil
}

func (repo *seriesRepository) GetSeries(_ context.Context, id string, _ ...core.DBExecutor) (series.Series, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.series[id]; ok {
		return *s, nil
	}
	return series.Series{}, series.ErrNotFound
}

func (repo *seriesRepository) QuerySeries(_ context.Context, filter *series.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]series.Series, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	list := make([]series.Series, 0, len(repo.db.series))
	for _, s := range repo.db.series {
		if filter != nil {
			if filter.AuthorID != "" && s.AuthorID != filter.AuthorID {
				continue
			}
			if filter.Search != "" {
				search := strings.ToLower(filter.Search)
				if !(strings.Contains(strings.ToLower(s.Title), search) ||
					strings.Contains(strings.ToLower(s.Description), search)) {
					continue
				}
			}
		}
		list = append(list, *s)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	if len(ordering) > 0 {
		sort.SliceStable(list, orderingLess(ordering, func(i, j int, field string) int {
			switch field {
			case "title":
				return strings.Compare(list[i].Title, list[j].Title)
			case "created_at":
				return compareTimes(list[i].CreatedAt, list[j].CreatedAt)
			case "updated_at":
				return compareTimes(list[i].UpdatedAt, list[j].UpdatedAt)
			}
			return 0
		}))
	}
	return list, nil
}

// DeleteSeries also deletes the series' episodes.
func (repo *seriesRepository) DeleteSeries(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.series[id]; !ok {
		return series.ErrNotFound
	}
	delete(repo.db.series, id)
	for epID, ep := range repo.db.episodes {
		if ep.SeriesID == id {
			delete(repo.db.episodes, epID)
		}
	}
	return nil
}

func (repo *seriesRepository) AppendEpisode(_ context.Context, ep series.Episode, _ ...core.DBExecutor) (series.Episode, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.series[ep.SeriesID]; !ok {
		return series.Episode{}, series.ErrNotFound
	}
	ep.OrderInSeries = 1
	for _, other := range repo.db.episodes {
		if other.SeriesID == ep.SeriesID && other.OrderInSeries >= ep.OrderInSeries {
			ep.OrderInSeries = other.OrderInSeries + 1
		}
	}
	ep.ID = newID()
	ep.Exam = copyExamRef(ep.Exam)
	repo.db.episodes[ep.ID] = &ep
	return ep, nil
}

func (repo *seriesRepository) GetEpisode(_ context.Context, id string, _ ...core.DBExecutor) (series.Episode, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ep, ok := repo.db.episodes[id]; ok {
		return copyEpisode(ep), nil
	}
	return series.Episode{}, series.ErrEpisodeNotFound
}

func (repo *seriesRepository) UpdateEpisode(_ context.Context, ep series.Episode, _ ...core.DBExecutor) (series.Episode, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.episodes[ep.ID]; !ok {
		return series.Episode{}, series.ErrEpisodeNotFound
	}
	ep.Exam = copyExamRef(ep.Exam)
	repo.db.episodes[ep.ID] = &ep
	return copyEpisode(&ep), nil
}

func (repo *seriesRepository) DeleteEpisode(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.episodes[id]; !ok {
		return series.ErrEpisodeNotFound
	}
	delete(repo.db.episodes, id)
	return nil
}

func (repo *seriesRepository) QueryEpisodes(_ context.Context, seriesID string, _ ...core.DBExecutor) ([]series.Episode, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return repo.filterEpisodes(func(ep *series.Episode) bool { return ep.SeriesID == seriesID }), nil
}

func (repo *seriesRepository) QueryEpisodesByExam(_ context.Context, examID string, _ ...core.DBExecutor) ([]series.Episode, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return repo.filterEpisodes(func(ep *series.Episode) bool { return ep.Exam != nil && ep.Exam.ID == examID }), nil
}

func (repo *seriesRepository) ShiftEpisodesDown(_ context.Context, seriesID string, after int, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, ep := range repo.db.episodes {
		if ep.SeriesID == seriesID && ep.OrderInSeries > after {
			ep.OrderInSeries--
		}
	}
	return nil
}

// unlinkExam mirrors the exam FK's ON DELETE SET NULL.
func (repo *seriesRepository) unlinkExam(examID string) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, ep := range repo.db.episodes {
		if ep.Exam != nil && ep.Exam.ID == examID {
			ep.Exam = nil
		}
	}
}

// filterEpisodes returns the episodes matching keep, sorted by series then order. Caller holds the lock.
func (repo *seriesRepository) filterEpisodes(keep func(ep *series.Episode) bool) []series.Episode {
	episodes := make([]series.Episode, 0)
	for _, ep := range repo.db.episodes {
		if keep(ep) {
			episodes = append(episodes, copyEpisode(ep))
		}
	}
	sort.Slice(episodes, func(i, j int) bool {
		if episodes[i].SeriesID != episodes[j].SeriesID {
			return episodes[i].SeriesID < episodes[j].SeriesID
		}
		return episodes[i].OrderInSeries < episodes[j].OrderInSeries
	})
	return episodes
}

func copyEpisode(ep *series.Episode) series.Episode {
	cp := *ep
	cp.Exam = copyExamRef(ep.Exam)
	return cp
}

func copyExamRef(ref *series.ExamRef) *series.ExamRef {
	if ref == nil {
		return nil
	}
	cp := *ref
	return &cp
}
