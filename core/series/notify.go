package series

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/tazama/core"
	"github.com/trezcool/tazama/core/user"
)

const unlockedTemplateName = "episodes_unlocked"

type (
	unlockedEpisode struct {
		ID          string
		SeriesTitle string
		Order       int
		Title       string
	}

	unlockedData struct {
		Name      string
		ExamTitle string
		Episodes  []unlockedEpisode
	}
)

// NotifyUnlocked finds the episodes unlocked for usr by passing the exam and emails them the list.
// It is meant to be called right after the user's first passing submission.
func (svc *Service) NotifyUnlocked(ctx context.Context, usr user.User, examID string) ([]Episode, error) {
	viewer := ViewerFromUser(usr)
	if viewer.isSuperAdmin() {
		return nil, nil
	}

	e, err := svc.exams.Get(ctx, examID)
	if err != nil {
		return nil, errors.Wrap(err, "getting exam")
	}

	data := unlockedData{Name: usr.Name, ExamTitle: e.Title}
	unlocked := make([]Episode, 0)

	err = svc.tx.RunInTx(ctx, true, func(exec core.DBExecutor) error {
		gates, err := svc.repo.QueryEpisodesByExam(ctx, examID, exec)
		if err != nil {
			return errors.Wrap(err, "querying episodes by exam")
		}

		seen := make(map[string]bool)
		for _, gate := range gates {
			if !gate.RequiresExamToUnlock || seen[gate.SeriesID] {
				continue
			}
			seen[gate.SeriesID] = true

			s, err := svc.repo.GetSeries(ctx, gate.SeriesID, exec)
			if err != nil {
				return err
			}
			episodes, passed, err := svc.episodesAndPasses(ctx, gate.SeriesID, viewer, exec)
			if err != nil {
				return err
			}

			accesses := ComputeEpisodeLocks(episodes, viewer, passed)
			for i, acc := range accesses {
				if i == 0 || acc.IsLocked || !acc.IsLockedByDefault || viewer.isAuthor(acc.AuthorID) {
					continue
				}
				prev := accesses[i-1]
				if prev.RequiresExamToUnlock && prev.Exam != nil && prev.Exam.ID == examID {
					unlocked = append(unlocked, acc.Episode)
					data.Episodes = append(data.Episodes, unlockedEpisode{
						ID:          acc.ID,
						SeriesTitle: s.Title,
						Order:       acc.OrderInSeries,
						Title:       acc.Title,
					})
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "finding unlocked episodes")
	}

	if len(unlocked) > 0 && usr.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "New episodes unlocked",
			TemplateName: unlockedTemplateName,
			TemplateData: data,
		})
	}
	return unlocked, nil
}
