// Package testutil holds helpers shared by the packages' tests.
package testutil

import (
	"context"
	"io/ioutil"
	"testing"
	"time"

	"github.com/trezcool/tazama/core"
	"github.com/trezcool/tazama/core/exam"
	"github.com/trezcool/tazama/core/series"
	"github.com/trezcool/tazama/core/user"
	logsvc "github.com/trezcool/tazama/services/logger"
)

// NewLogger returns a core.Logger that discards everything.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(ioutil.Discard, conf)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateExam creates an exam whose questions are worth points each; the right answer is always choice 0.
func CreateExam(t *testing.T, svc *exam.Service, authorID, title string, points ...int) exam.Exam {
	t.Helper()

	ne := exam.NewExam{Title: title}
	for _, p := range points {
		ne.Questions = append(ne.Questions, exam.NewQuestion{
			Prompt:  "Question?",
			Choices: []string{"right", "wrong"},
			Answer:  0,
			Points:  p,
		})
	}
	e, err := svc.Create(context.Background(), authorID, ne)
	if err != nil {
		t.Fatalf("createExam() failed: %v", err)
	}
	return e
}

func CreateSeries(t *testing.T, svc *series.Service, authorID, title string) series.Series {
	t.Helper()

	s, err := svc.Create(context.Background(), authorID, series.NewSeries{Title: title})
	if err != nil {
		t.Fatalf("createSeries() failed: %v", err)
	}
	return s
}

// AddEpisode appends an episode locked by default.
func AddEpisode(t *testing.T, svc *series.Service, s series.Series, title string, requiresExam bool, examID string) series.Episode {
	t.Helper()

	ep, err := svc.AddEpisode(context.Background(), s.ID, s.AuthorID, series.NewEpisode{
		Title:                title,
		Content:              "Welcome to *" + title + "*",
		RequiresExamToUnlock: requiresExam,
		ExamID:               examID,
	})
	if err != nil {
		t.Fatalf("addEpisode() failed: %v", err)
	}
	return ep
}
