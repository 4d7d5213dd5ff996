package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/tazama/core"
	"github.com/trezcool/tazama/core/exam"
)

type (
	examRow struct {
		ID        string         `db:"id"`
		Title     string         `db:"title"`
		AuthorID  sql.NullString `db:"author_id"`
		CreatedAt sql.NullTime   `db:"created_at"`
		UpdatedAt sql.NullTime   `db:"updated_at"`
	}

	questionRow struct {
		ID       string         `db:"id"`
		ExamID   string         `db:"exam_id"`
		Prompt   string         `db:"prompt"`
		Choices  pq.StringArray `db:"choices"`
		Answer   int            `db:"answer"`
		Points   int            `db:"points"`
		Position int            `db:"position"`
	}

	submissionRow struct {
		ID        string       `db:"id"`
		UserID    string       `db:"user_id"`
		ExamID    string       `db:"exam_id"`
		Score     float64      `db:"score"`
		Answers   answers      `db:"answers"`
		CreatedAt sql.NullTime `db:"created_at"`
	}

	// answers is a JSONB {questionID: choice} column.
	answers map[string]int
)

func (a answers) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

func (a *answers) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*a = answers{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("cannot scan %T into answers", src)
	}
	return json.Unmarshal(data, a)
}

type examRepository struct {
	exec core.DBExecutor
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(exec core.DBExecutor) *examRepository {
	return &examRepository{exec: exec}
}

func (repo examRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// selectInto runs q, expanding slice args, and scans every row into dest.
func selectInto(ctx context.Context, exe core.DBExecutor, dest interface{}, q string, args ...interface{}) error {
	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return err
	}
	rows, err := exe.QueryContext(ctx, sqlx.Rebind(sqlx.DOLLAR, q), args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	return sqlx.StructScan(rows, dest)
}

func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

func (repo examRepository) CreateExam(ctx context.Context, e exam.Exam, exec ...core.DBExecutor) (exam.Exam, error) {
	exe := repo.getExec(exec)
	e.ID = uuid.New().String()

	_, err := exe.ExecContext(ctx,
		`INSERT INTO "exam" ("id", "title", "author_id", "created_at", "updated_at") VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Title, sql.NullString{String: e.AuthorID, Valid: e.AuthorID != ""}, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "inserting exam")
	}

	for i := range e.Questions {
		q := &e.Questions[i]
		q.ID = uuid.New().String()
		q.ExamID = e.ID
		_, err = exe.ExecContext(ctx,
			`INSERT INTO "exam_question" ("id", "exam_id", "prompt", "choices", "answer", "points", "position")
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			q.ID, q.ExamID, q.Prompt, pq.StringArray(q.Choices), q.Answer, q.Points, q.Position)
		if err != nil {
			return exam.Exam{}, errors.Wrap(err, "inserting exam question")
		}
	}
	return e, nil
}

func (repo examRepository) GetExam(ctx context.Context, id string, exec ...core.DBExecutor) (exam.Exam, error) {
	exams, err := repo.QueryExams(ctx, []string{id}, exec...)
	if err != nil {
		return exam.Exam{}, err
	}
	if len(exams) == 0 {
		return exam.Exam{}, exam.ErrNotFound
	}
	return exams[0], nil
}

func (repo examRepository) QueryExams(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]exam.Exam, error) {
	exe := repo.getExec(exec)

	var rows []examRow
	var err error
	if len(ids) == 0 {
		err = selectInto(ctx, exe, &rows, `SELECT * FROM "exam" ORDER BY "created_at"`)
	} else if ids = validIDs(ids); len(ids) > 0 {
		err = selectInto(ctx, exe, &rows, `SELECT * FROM "exam" WHERE "id" IN (?) ORDER BY "created_at"`, ids)
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	if len(rows) == 0 {
		return []exam.Exam{}, nil
	}

	examIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		examIDs = append(examIDs, r.ID)
	}
	var qRows []questionRow
	err = selectInto(ctx, exe, &qRows,
		`SELECT * FROM "exam_question" WHERE "exam_id" IN (?) ORDER BY "exam_id", "position"`, examIDs)
	if err != nil {
		return nil, errors.Wrap(err, "querying exam questions")
	}

	questions := make(map[string][]exam.Question, len(rows))
	for _, q := range qRows {
		questions[q.ExamID] = append(questions[q.ExamID], exam.Question{
			ID:       q.ID,
			ExamID:   q.ExamID,
			Prompt:   q.Prompt,
			Choices:  []string(q.Choices),
			Answer:   q.Answer,
			Points:   q.Points,
			Position: q.Position,
		})
	}

	exams := make([]exam.Exam, 0, len(rows))
	for _, r := range rows {
		exams = append(exams, exam.Exam{
			ID:        r.ID,
			Title:     r.Title,
			AuthorID:  r.AuthorID.String,
			Questions: questions[r.ID],
			CreatedAt: r.CreatedAt.Time,
			UpdatedAt: r.UpdatedAt.Time,
		})
	}
	return exams, nil
}

func (repo examRepository) DeleteExam(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return exam.ErrNotFound
	}
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM "exam" WHERE "id" = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return exam.ErrNotFound
	}
	return nil
}

func (repo examRepository) CreateSubmission(ctx context.Context, sub exam.Submission, exec ...core.DBExecutor) (exam.Submission, error) {
	sub.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO "exam_submission" ("id", "user_id", "exam_id", "score", "answers", "created_at")
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sub.ID, sub.UserID, sub.ExamID, sub.Score, answers(sub.Answers), sub.CreatedAt.UTC())
	if err != nil {
		return exam.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo examRepository) QuerySubmissions(ctx context.Context, userID string, examIDs []string, exec ...core.DBExecutor) ([]exam.Submission, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []exam.Submission{}, nil
	}

	var rows []submissionRow
	var err error
	if len(examIDs) == 0 {
		err = selectInto(ctx, repo.getExec(exec), &rows,
			`SELECT * FROM "exam_submission" WHERE "user_id" = ? ORDER BY "created_at"`, userID)
	} else if examIDs = validIDs(examIDs); len(examIDs) > 0 {
		err = selectInto(ctx, repo.getExec(exec), &rows,
			`SELECT * FROM "exam_submission" WHERE "user_id" = ? AND "exam_id" IN (?) ORDER BY "created_at"`, userID, examIDs)
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	subs := make([]exam.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, exam.Submission{
			ID:        r.ID,
			UserID:    r.UserID,
			ExamID:    r.ExamID,
			Score:     r.Score,
			Answers:   map[string]int(r.Answers),
			CreatedAt: r.CreatedAt.Time,
		})
	}
	return subs, nil
}

// LockSubmissions takes a transaction-level advisory lock on the (user, exam) pair.
func (repo examRepository) LockSubmissions(ctx context.Context, userID, examID string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1::text || ':' || $2::text))`, userID, examID)
	return errors.Wrap(err, "taking submissions lock")
}
