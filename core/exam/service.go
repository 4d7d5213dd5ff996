package exam

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tazama/core"
)

var (
	// errors
	ErrNotFound = errors.New("exam not found")

	errAnswerOutOfRange = "answer must be the index of one of the choices"
	errUnknownQuestion  = "unknown question"

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateExam inserts the exam and its questions.
		CreateExam(ctx context.Context, e Exam, exec ...core.DBExecutor) (Exam, error)
		// GetExam returns the exam with its questions ordered by position.
		GetExam(ctx context.Context, id string, exec ...core.DBExecutor) (Exam, error)
		// QueryExams returns the exams with the given IDs, all exams if none given.
		QueryExams(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]Exam, error)
		DeleteExam(ctx context.Context, id string, exec ...core.DBExecutor) error
		CreateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
		// QuerySubmissions returns the user's submissions for the given exams, all of them if none given.
		QuerySubmissions(ctx context.Context, userID string, examIDs []string, exec ...core.DBExecutor) ([]Submission, error)
		// LockSubmissions blocks other LockSubmissions calls for the same user and exam until exec's transaction ends.
		LockSubmissions(ctx context.Context, userID, examID string, exec ...core.DBExecutor) error
	}

	Service struct {
		tx   core.Transactor
		repo Repository

		// serializes Submit within the process; LockSubmissions covers other processes
		submitMu sync.Mutex
	}
)

func NewService(tx core.Transactor, repo Repository) *Service {
	return &Service{tx: tx, repo: repo}
}

func (svc *Service) Create(ctx context.Context, authorID string, ne NewExam) (Exam, error) {
	flds := make([]core.FieldError, 0)
	for i, q := range ne.Questions {
		if q.Answer >= len(q.Choices) {
			flds = append(flds, core.FieldError{
				Field: "questions[" + strconv.Itoa(i) + "].answer",
				Error: errAnswerOutOfRange,
			})
		}
	}
	if len(flds) > 0 {
		return Exam{}, core.NewValidationError(nil, flds...)
	}

	now := NowFunc().UTC()
	e := Exam{
		Title:     ne.Title,
		AuthorID:  authorID,
		Questions: make([]Question, 0, len(ne.Questions)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, q := range ne.Questions {
		e.Questions = append(e.Questions, Question{
			Prompt:   q.Prompt,
			Choices:  q.Choices,
			Answer:   q.Answer,
			Points:   q.Points,
			Position: i + 1,
		})
	}

	err := svc.tx.RunInTx(ctx, false, func(exec core.DBExecutor) error {
		var err error
		e, err = svc.repo.CreateExam(ctx, e, exec)
		return err
	})
	if err != nil {
		return Exam{}, errors.Wrap(err, "creating exam")
	}
	return e, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Exam, error) {
	return svc.repo.GetExam(ctx, id)
}

func (svc *Service) Query(ctx context.Context, ids ...string) ([]Exam, error) {
	return svc.repo.QueryExams(ctx, ids)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteExam(ctx, id)
}

// Submit grades and stores the user's answers. A user may submit the same exam any number of times.
// Of concurrent passing submissions, only one reports FirstPass.
func (svc *Service) Submit(ctx context.Context, userID, examID string, ns NewSubmission) (SubmissionResult, error) {
	var res SubmissionResult

	svc.submitMu.Lock()
	defer svc.submitMu.Unlock()

	err := svc.tx.RunInTx(ctx, false, func(exec core.DBExecutor) error {
		e, err := svc.repo.GetExam(ctx, examID, exec)
		if err != nil {
			return err
		}
		if err = checkAnswers(e, ns.Answers); err != nil {
			return err
		}
		if err = svc.repo.LockSubmissions(ctx, userID, examID, exec); err != nil {
			return errors.Wrap(err, "locking submissions")
		}

		prevSubs, err := svc.repo.QuerySubmissions(ctx, userID, []string{examID}, exec)
		if err != nil {
			return errors.Wrap(err, "querying previous submissions")
		}
		passedBefore := IsPassed(e, prevSubs)

		sub, err := svc.repo.CreateSubmission(ctx, Submission{
			UserID:    userID,
			ExamID:    examID,
			Score:     Grade(e, ns.Answers),
			Answers:   ns.Answers,
			CreatedAt: NowFunc().UTC(),
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating submission")
		}

		total := e.TotalPoints()
		res = SubmissionResult{
			Submission:  sub,
			TotalPoints: total,
			Percentage:  Percentage(sub.Score, total),
			Passed:      IsPassed(e, []Submission{sub}),
		}
		res.FirstPass = res.Passed && !passedBefore
		return nil
	})
	if err != nil {
		return SubmissionResult{}, errors.Wrap(err, "submitting exam")
	}
	return res, nil
}

// PassedExamIDs returns the exams among examIDs the user has passed.
// exec lets callers read within their own transaction.
func (svc *Service) PassedExamIDs(ctx context.Context, userID string, examIDs []string, exec ...core.DBExecutor) (IDSet, error) {
	if userID == "" || len(examIDs) == 0 {
		return IDSet{}, nil
	}

	exams, err := svc.repo.QueryExams(ctx, examIDs, exec...)
	if err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	subs, err := svc.repo.QuerySubmissions(ctx, userID, examIDs, exec...)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return PassedExamIDs(exams, subs), nil
}

func checkAnswers(e Exam, answers map[string]int) error {
	questions := make(map[string]Question, len(e.Questions))
	for _, q := range e.Questions {
		questions[q.ID] = q
	}

	flds := make([]core.FieldError, 0)
	for qID, choice := range answers {
		q, ok := questions[qID]
		if !ok {
			flds = append(flds, core.FieldError{Field: "answers." + qID, Error: errUnknownQuestion})
		} else if choice < 0 || choice >= len(q.Choices) {
			flds = append(flds, core.FieldError{Field: "answers." + qID, Error: errAnswerOutOfRange})
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}
