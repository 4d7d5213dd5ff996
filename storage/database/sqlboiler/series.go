package boiledrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/tazama/core"
	"github.com/trezcool/tazama/core/series"
)

const (
	seriesColumns = `"id", "title", "description", "author_id", "created_at", "updated_at"`

	episodeSelect = `SELECT ep."id", ep."series_id", ep."title", ep."content", ep."order_in_series", ep."author_id",
		ep."is_locked_by_default", ep."requires_exam_to_unlock", ep."exam_id", ex."title" AS "exam_title",
		ep."created_at", ep."updated_at"
	FROM "episode" ep
	LEFT JOIN "exam" ex ON ex."id" = ep."exam_id"`
)

var seriesOrderingColumns = map[string]bool{
	"title":      true,
	"created_at": true,
	"updated_at": true,
}

type (
	seriesRow struct {
		ID          string      `boil:"id"`
		Title       string      `boil:"title"`
		Description string      `boil:"description"`
		AuthorID    null.String `boil:"author_id"`
		CreatedAt   null.Time   `boil:"created_at"`
		UpdatedAt   null.Time   `boil:"updated_at"`
	}

	episodeRow struct {
		ID                   string      `boil:"id"`
		SeriesID             string      `boil:"series_id"`
		Title                string      `boil:"title"`
		Content              string      `boil:"content"`
		OrderInSeries        int         `boil:"order_in_series"`
		AuthorID             null.String `boil:"author_id"`
		IsLockedByDefault    bool        `boil:"is_locked_by_default"`
		RequiresExamToUnlock bool        `boil:"requires_exam_to_unlock"`
		ExamID               null.String `boil:"exam_id"`
		ExamTitle            null.String `boil:"exam_title"`
		CreatedAt            null.Time   `boil:"created_at"`
		UpdatedAt            null.Time   `boil:"updated_at"`
	}
)

type seriesRepository struct {
	exec core.DBExecutor
}

var _ series.Repository = (*seriesRepository)(nil) // interface compliance check

func NewSeriesRepository(exec core.DBExecutor) *seriesRepository {
	return &seriesRepository{exec: exec}
}

func (repo seriesRepository) unboilSeries(row *seriesRow) series.Series {
	return series.Series{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		AuthorID:    row.AuthorID.String,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func (repo seriesRepository) boilEpisode(ep series.Episode) *episodeRow {
	row := &episodeRow{
		ID:                   ep.ID,
		SeriesID:             ep.SeriesID,
		Title:                ep.Title,
		Content:              ep.Content,
		OrderInSeries:        ep.OrderInSeries,
		AuthorID:             null.NewString(ep.AuthorID, ep.AuthorID != ""),
		IsLockedByDefault:    ep.IsLockedByDefault,
		RequiresExamToUnlock: ep.RequiresExamToUnlock,
		CreatedAt:            null.NewTime(ep.CreatedAt.UTC(), !ep.CreatedAt.IsZero()),
		UpdatedAt:            null.NewTime(ep.UpdatedAt.UTC(), !ep.UpdatedAt.IsZero()),
	}
	if ep.Exam != nil {
		row.ExamID = null.StringFrom(ep.Exam.ID)
		row.ExamTitle = null.StringFrom(ep.Exam.Title)
	}
	return row
}

func (repo seriesRepository) unboilEpisode(row *episodeRow) series.Episode {
	ep := series.Episode{
		ID:                   row.ID,
		SeriesID:             row.SeriesID,
		Title:                row.Title,
		Content:              row.Content,
		OrderInSeries:        row.OrderInSeries,
		AuthorID:             row.AuthorID.String,
		IsLockedByDefault:    row.IsLockedByDefault,
		RequiresExamToUnlock: row.RequiresExamToUnlock,
		CreatedAt:            row.CreatedAt.Time,
		UpdatedAt:            row.UpdatedAt.Time,
	}
	if row.ExamID.Valid {
		ep.Exam = &series.ExamRef{ID: row.ExamID.String, Title: row.ExamTitle.String}
	}
	return ep
}

func (repo seriesRepository) unboilEpisodes(rows []*episodeRow) []series.Episode {
	episodes := make([]series.Episode, 0, len(rows))
	for _, row := range rows {
		episodes = append(episodes, repo.unboilEpisode(row))
	}
	return episodes
}

func (repo seriesRepository) CreateSeries(ctx context.Context, s series.Series, exec ...core.DBExecutor) (series.Series, error) {
	s.ID = uuid.New().String()
	_, err := queries.Raw(
		`INSERT INTO "series" (`+seriesColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Title, s.Description, null.NewString(s.AuthorID, s.AuthorID != ""), s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	).ExecContext(ctx, getExec(repo.exec, exec))
	if err != nil {
		return series.Series{}, errors.Wrap(err, "inserting series")
	}
	return s, nil
}

func (repo seriesRepository) GetSeries(ctx context.Context, id string, exec ...core.DBExecutor) (series.Series, error) {
	if _, err := uuid.Parse(id); err != nil {
		return series.Series{}, series.ErrNotFound
	}

	var row seriesRow
	err := queries.Raw(`SELECT `+seriesColumns+` FROM "series" WHERE "id" = $1`, id).Bind(ctx, getExec(repo.exec, exec), &row)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return series.Series{}, series.ErrNotFound
		}
		return series.Series{}, errors.Wrap(err, "finding series")
	}
	return repo.unboilSeries(&row), nil
}

func (repo seriesRepository) QuerySeries(ctx context.Context, filter *series.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]series.Series, error) {
	w := new(where)
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add(`"title" ILIKE ? OR "description" ILIKE ?`, val, val)
		}
		if filter.AuthorID != "" {
			if _, err := uuid.Parse(filter.AuthorID); err != nil {
				return []series.Series{}, nil
			}
			w.add(`"author_id" = ?`, filter.AuthorID)
		}
	}

	var rows []*seriesRow
	q := `SELECT ` + seriesColumns + ` FROM "series"` + w.String() + orderBy(ordering, seriesOrderingColumns, `"created_at" ASC`)
	if err := queries.Raw(q, w.args...).Bind(ctx, getExec(repo.exec, exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying series")
	}

	list := make([]series.Series, 0, len(rows))
	for _, row := range rows {
		list = append(list, repo.unboilSeries(row))
	}
	return list, nil
}

func (repo seriesRepository) DeleteSeries(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return series.ErrNotFound
	}
	res, err := queries.Raw(`DELETE FROM "series" WHERE "id" = $1`, id).ExecContext(ctx, getExec(repo.exec, exec))
	return affectedOne(res, err, series.ErrNotFound, "deleting series")
}

// AppendEpisode locks the series row for the rest of the transaction, so concurrent appends queue up.
func (repo seriesRepository) AppendEpisode(ctx context.Context, ep series.Episode, exec ...core.DBExecutor) (series.Episode, error) {
	if _, err := uuid.Parse(ep.SeriesID); err != nil {
		return series.Episode{}, series.ErrNotFound
	}
	exe := getExec(repo.exec, exec)

	var lockedID string
	err := exe.QueryRowContext(ctx, `SELECT "id" FROM "series" WHERE "id" = $1 FOR UPDATE`, ep.SeriesID).Scan(&lockedID)
	if err != nil {
		if err == sql.ErrNoRows {
			return series.Episode{}, series.ErrNotFound
		}
		return series.Episode{}, errors.Wrap(err, "locking series")
	}

	ep.ID = uuid.New().String()
	r := repo.boilEpisode(ep)
	err = exe.QueryRowContext(ctx,
		`INSERT INTO "episode" ("id", "series_id", "title", "content", "order_in_series", "author_id",
			"is_locked_by_default", "requires_exam_to_unlock", "exam_id", "created_at", "updated_at")
		SELECT $1, $2, $3, $4, COALESCE(MAX("order_in_series"), 0) + 1, $5, $6, $7, $8, $9, $10
		FROM "episode" WHERE "series_id" = $2
		RETURNING "order_in_series"`,
		r.ID, r.SeriesID, r.Title, r.Content, r.AuthorID,
		r.IsLockedByDefault, r.RequiresExamToUnlock, r.ExamID, r.CreatedAt, r.UpdatedAt,
	).Scan(&ep.OrderInSeries)
	if err != nil {
		return series.Episode{}, errors.Wrap(err, "inserting episode")
	}
	return ep, nil
}

func (repo seriesRepository) GetEpisode(ctx context.Context, id string, exec ...core.DBExecutor) (series.Episode, error) {
	if _, err := uuid.Parse(id); err != nil {
		return series.Episode{}, series.ErrEpisodeNotFound
	}

	var row episodeRow
	err := queries.Raw(episodeSelect+` WHERE ep."id" = $1`, id).Bind(ctx, getExec(repo.exec, exec), &row)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return series.Episode{}, series.ErrEpisodeNotFound
		}
		return series.Episode{}, errors.Wrap(err, "finding episode")
	}
	return repo.unboilEpisode(&row), nil
}

func (repo seriesRepository) UpdateEpisode(ctx context.Context, ep series.Episode, exec ...core.DBExecutor) (series.Episode, error) {
	r := repo.boilEpisode(ep)
	res, err := queries.Raw(
		`UPDATE "episode" SET "title" = $2, "content" = $3, "order_in_series" = $4, "is_locked_by_default" = $5,
			"requires_exam_to_unlock" = $6, "exam_id" = $7, "updated_at" = $8
		WHERE "id" = $1`,
		r.ID, r.Title, r.Content, r.OrderInSeries, r.IsLockedByDefault, r.RequiresExamToUnlock, r.ExamID, r.UpdatedAt,
	).ExecContext(ctx, getExec(repo.exec, exec))
	if err = affectedOne(res, err, series.ErrEpisodeNotFound, "updating episode"); err != nil {
		return series.Episode{}, err
	}
	return ep, nil
}

func (repo seriesRepository) DeleteEpisode(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return series.ErrEpisodeNotFound
	}
	res, err := queries.Raw(`DELETE FROM "episode" WHERE "id" = $1`, id).ExecContext(ctx, getExec(repo.exec, exec))
	return affectedOne(res, err, series.ErrEpisodeNotFound, "deleting episode")
}

func (repo seriesRepository) QueryEpisodes(ctx context.Context, seriesID string, exec ...core.DBExecutor) ([]series.Episode, error) {
	if _, err := uuid.Parse(seriesID); err != nil {
		return []series.Episode{}, nil
	}

	var rows []*episodeRow
	q := episodeSelect + ` WHERE ep."series_id" = $1 ORDER BY ep."order_in_series" ASC`
	if err := queries.Raw(q, seriesID).Bind(ctx, getExec(repo.exec, exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying episodes")
	}
	return repo.unboilEpisodes(rows), nil
}

func (repo seriesRepository) QueryEpisodesByExam(ctx context.Context, examID string, exec ...core.DBExecutor) ([]series.Episode, error) {
	if _, err := uuid.Parse(examID); err != nil {
		return []series.Episode{}, nil
	}

	var rows []*episodeRow
	q := episodeSelect + ` WHERE ep."exam_id" = $1 ORDER BY ep."series_id", ep."order_in_series" ASC`
	if err := queries.Raw(q, examID).Bind(ctx, getExec(repo.exec, exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying episodes by exam")
	}
	return repo.unboilEpisodes(rows), nil
}

func (repo seriesRepository) ShiftEpisodesDown(ctx context.Context, seriesID string, after int, exec ...core.DBExecutor) error {
	_, err := queries.Raw(
		`UPDATE "episode" SET "order_in_series" = "order_in_series" - 1 WHERE "series_id" = $1 AND "order_in_series" > $2`,
		seriesID, after,
	).ExecContext(ctx, getExec(repo.exec, exec))
	return errors.Wrap(err, "shifting episodes")
}

// affectedOne maps a statement that touched no row to notFound.
func affectedOne(res sql.Result, err error, notFound error, msg string) error {
	if err != nil {
		return errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
