package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/tazama/core"
	"github.com/trezcool/tazama/core/exam"
)

type examRepository struct {
	db       *examTable
	episodes *seriesRepository
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) *examRepository {
	return &examRepository{db: db.exam, episodes: NewSeriesRepository(db)}
}

func (repo *examRepository) CreateExam(_ context.Context, e exam.Exam, _ ...core.DBExecutor) (exam.Exam, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	e.ID = newID()
	questions := make([]exam.Question, 0, len(e.Questions))
	for _, q := range e.Questions {
		q.ID = newID()
		q.ExamID = e.ID
		q.Choices = append([]string(nil), q.Choices...)
		questions = append(questions, q)
	}
	e.Questions = questions
	repo.db.exams[e.ID] = &e
	return copyExam(&e), nil
}

func (repo *examRepository) GetExam(_ context.Context, id string, _ ...core.DBExecutor) (exam.Exam, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.exams[id]; ok {
		return copyExam(e), nil
	}
	return exam.Exam{}, exam.ErrNotFound
}

func (repo *examRepository) QueryExams(_ context.Context, ids []string, _ ...core.DBExecutor) ([]exam.Exam, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := exam.NewIDSet(ids...)
	exams := make([]exam.Exam, 0)
	for _, e := range repo.db.exams {
		if len(ids) == 0 || wanted.Has(e.ID) {
			exams = append(exams, copyExam(e))
		}
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].CreatedAt.Before(exams[j].CreatedAt) })
	return exams, nil
}

// DeleteExam also deletes the exam's submissions and unlinks it from episodes.
func (repo *examRepository) DeleteExam(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.exams[id]; !ok {
		return exam.ErrNotFound
	}
	delete(repo.db.exams, id)
	for subID, sub := range repo.db.submissions {
		if sub.ExamID == id {
			delete(repo.db.submissions, subID)
		}
	}
	repo.episodes.unlinkExam(id)
	return nil
}

func (repo *examRepository) CreateSubmission(_ context.Context, sub exam.Submission, _ ...core.DBExecutor) (exam.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.exams[sub.ExamID]; !ok {
		return exam.Submission{}, exam.ErrNotFound
	}
	sub.ID = newID()
	answers := make(map[string]int, len(sub.Answers))
	for k, v := range sub.Answers {
		answers[k] = v
	}
	sub.Answers = answers
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *examRepository) QuerySubmissions(_ context.Context, userID string, examIDs []string, _ ...core.DBExecutor) ([]exam.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := exam.NewIDSet(examIDs...)
	subs := make([]exam.Submission, 0)
	for _, sub := range repo.db.submissions {
		if sub.UserID == userID && (len(examIDs) == 0 || wanted.Has(sub.ExamID)) {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
	return subs, nil
}

// LockSubmissions is a no-op: without transactions, exam.Service serializes submissions itself.
func (repo *examRepository) LockSubmissions(_ context.Context, _, _ string, _ ...core.DBExecutor) error {
	return nil
}

func copyExam(e *exam.Exam) exam.Exam {
	cp := *e
	cp.Questions = append([]exam.Question(nil), e.Questions...)
	return cp
}
