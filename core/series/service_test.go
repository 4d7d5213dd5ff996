package series_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tazama/core"
	"github.com/trezcool/tazama/core/exam"
	"github.com/trezcool/tazama/core/series"
	"github.com/trezcool/tazama/core/user"
	inmemdb "github.com/trezcool/tazama/storage/database/inmem"
)

type mailbox struct {
	mu   sync.Mutex
	msgs []*core.EmailMessage
}

func (mb *mailbox) SendMessages(messages ...*core.EmailMessage) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.msgs = append(mb.msgs, messages...)
}

type fixture struct {
	ctx     context.Context
	svc     *series.Service
	examSvc *exam.Service
	mail    *mailbox
	author  user.User
	reader  user.User
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := inmemdb.Open()
	examSvc := exam.NewService(core.NoTxTransactor, inmemdb.NewExamRepository(db))
	mb := new(mailbox)
	return &fixture{
		ctx:     context.Background(),
		svc:     series.NewService(core.NoTxTransactor, inmemdb.NewSeriesRepository(db), examSvc, mb),
		examSvc: examSvc,
		mail:    mb,
		author:  user.User{ID: "author-id", Name: "Author", Roles: []string{user.RoleAdmin}},
		reader:  user.User{ID: "reader-id", Name: "Reader", Email: "reader@tazama.io", Roles: []string{user.RoleUser}},
	}
}

func (f *fixture) newExam(t *testing.T, title string) exam.Exam {
	t.Helper()
	e, err := f.examSvc.Create(f.ctx, f.author.ID, exam.NewExam{
		Title: title,
		Questions: []exam.NewQuestion{
			{Prompt: "1 + 1?", Choices: []string{"2", "3"}, Answer: 0, Points: 1},
			{Prompt: "2 + 2?", Choices: []string{"5", "4"}, Answer: 1, Points: 1},
		},
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) pass(t *testing.T, usr user.User, e exam.Exam) exam.SubmissionResult {
	t.Helper()
	res, err := f.examSvc.Submit(f.ctx, usr.ID, e.ID, exam.NewSubmission{
		Answers: map[string]int{e.Questions[0].ID: 0},
	})
	require.NoError(t, err)
	require.True(t, res.Passed)
	return res
}

func (f *fixture) addEpisode(t *testing.T, s series.Series, title string, requiresExam bool, examID string) series.Episode {
	t.Helper()
	ep, err := f.svc.AddEpisode(f.ctx, s.ID, f.author.ID, series.NewEpisode{
		Title:                title,
		Content:              "# " + title,
		RequiresExamToUnlock: requiresExam,
		ExamID:               examID,
	})
	require.NoError(t, err)
	return ep
}

func locked(access series.SeriesAccess) []bool {
	res := make([]bool, 0, len(access.Episodes))
	for _, ep := range access.Episodes {
		res = append(res, ep.IsLocked)
	}
	return res
}

func TestService_GetWithLocks(t *testing.T) {
	f := setup(t)
	q1 := f.newExam(t, "Q1")
	q3 := f.newExam(t, "Q3")

	s, err := f.svc.Create(f.ctx, f.author.ID, series.NewSeries{Title: "Go"})
	require.NoError(t, err)
	f.addEpisode(t, s, "E1", true, q1.ID)
	f.addEpisode(t, s, "E2", false, "")
	f.addEpisode(t, s, "E3", true, q3.ID)

	tests := []struct {
		name   string
		viewer series.Viewer
		want   []bool
	}{
		{name: "anonymous", viewer: series.AnonymousViewer(), want: []bool{true, true, true}},
		{name: "reader, nothing passed", viewer: series.ViewerFromUser(f.reader), want: []bool{true, true, true}},
		{name: "author", viewer: series.ViewerFromUser(f.author), want: []bool{false, false, false}},
		{name: "super admin", viewer: series.UserViewer("root", series.RoleSuperAdmin), want: []bool{false, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			access, err := f.svc.GetWithLocks(f.ctx, s.ID, tt.viewer)
			require.NoError(t, err)
			assert.Equal(t, s.ID, access.ID)
			assert.Equal(t, tt.want, locked(access))
		})
	}

	f.pass(t, f.reader, q1)
	access, err := f.svc.GetWithLocks(f.ctx, s.ID, series.ViewerFromUser(f.reader))
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, locked(access))

	_, err = f.svc.GetWithLocks(f.ctx, "nope", series.AnonymousViewer())
	assert.Equal(t, series.ErrNotFound, errors.Cause(err))
}

func TestService_AddEpisode(t *testing.T) {
	f := setup(t)
	s, err := f.svc.Create(f.ctx, f.author.ID, series.NewSeries{Title: "Go"})
	require.NoError(t, err)

	e1 := f.addEpisode(t, s, "E1", false, "")
	e2 := f.addEpisode(t, s, "E2", false, "")
	assert.Equal(t, 1, e1.OrderInSeries)
	assert.Equal(t, 2, e2.OrderInSeries)
	assert.True(t, e1.IsLockedByDefault, "episodes are locked by default")

	t.Run("unknown series", func(t *testing.T) {
		_, err := f.svc.AddEpisode(f.ctx, "nope", f.author.ID, series.NewEpisode{Title: "x"})
		assert.Equal(t, series.ErrNotFound, errors.Cause(err))
	})

	t.Run("unknown exam", func(t *testing.T) {
		_, err := f.svc.AddEpisode(f.ctx, s.ID, f.author.ID, series.NewEpisode{Title: "x", ExamID: "nope"})
		var vErr *core.ValidationError
		if assert.True(t, errors.As(err, &vErr)) {
			assert.Equal(t, "exam_id", vErr.Fields[0].Field)
		}
	})
}

func TestService_AddEpisode_concurrent(t *testing.T) {
	f := setup(t)
	s, err := f.svc.Create(f.ctx, f.author.ID, series.NewSeries{Title: "Go"})
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddEpisode(f.ctx, s.ID, f.author.ID, series.NewEpisode{Title: "E"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	access, err := f.svc.GetWithLocks(f.ctx, s.ID, series.AnonymousViewer())
	require.NoError(t, err)
	require.Len(t, access.Episodes, n)
	for i, ep := range access.Episodes {
		assert.Equal(t, i+1, ep.OrderInSeries, "orders must be dense and unique")
	}
}

func TestService_UpdateEpisode(t *testing.T) {
	f := setup(t)
	q1 := f.newExam(t, "Q1")
	s, err := f.svc.Create(f.ctx, f.author.ID, series.NewSeries{Title: "Go"})
	require.NoError(t, err)
	ep := f.addEpisode(t, s, "E1", false, "")

	title := "Intro"
	unlocked := false
	ep, err = f.svc.UpdateEpisode(f.ctx, ep.ID, series.UpdateEpisode{
		Title:             &title,
		IsLockedByDefault: &unlocked,
		ExamID:            &q1.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Intro", ep.Title)
	assert.False(t, ep.IsLockedByDefault)
	if assert.NotNil(t, ep.Exam) {
		assert.Equal(t, series.ExamRef{ID: q1.ID, Title: "Q1"}, *ep.Exam)
	}
	assert.Equal(t, "# E1", ep.Content, "untouched")

	empty := ""
	ep, err = f.svc.UpdateEpisode(f.ctx, ep.ID, series.UpdateEpisode{ExamID: &empty})
	require.NoError(t, err)
	assert.Nil(t, ep.Exam)

	_, err = f.svc.UpdateEpisode(f.ctx, "nope", series.UpdateEpisode{Title: &title})
	assert.Equal(t, series.ErrEpisodeNotFound, errors.Cause(err))
}

func TestService_RemoveEpisode(t *testing.T) {
	f := setup(t)
	s, err := f.svc.Create(f.ctx, f.author.ID, series.NewSeries{Title: "Go"})
	require.NoError(t, err)
	f.addEpisode(t, s, "E1", false, "")
	e2 := f.addEpisode(t, s, "E2", false, "")
	f.addEpisode(t, s, "E3", false, "")

	require.NoError(t, f.svc.RemoveEpisode(f.ctx, e2.ID))

	access, err := f.svc.GetWithLocks(f.ctx, s.ID, series.AnonymousViewer())
	require.NoError(t, err)
	require.Len(t, access.Episodes, 2)
	assert.Equal(t, "E1", access.Episodes[0].Title)
	assert.Equal(t, 1, access.Episodes[0].OrderInSeries)
	assert.Equal(t, "E3", access.Episodes[1].Title)
	assert.Equal(t, 2, access.Episodes[1].OrderInSeries)

	e4 := f.addEpisode(t, s, "E4", false, "")
	assert.Equal(t, 3, e4.OrderInSeries)

	err = f.svc.RemoveEpisode(f.ctx, e2.ID)
	assert.Equal(t, series.ErrEpisodeNotFound, errors.Cause(err))
}

func TestService_ViewEpisode(t *testing.T) {
	f := setup(t)
	q1 := f.newExam(t, "Q1")
	s, err := f.svc.Create(f.ctx, f.author.ID, series.NewSeries{Title: "Go"})
	require.NoError(t, err)
	f.addEpisode(t, s, "E1", true, q1.ID)
	e2 := f.addEpisode(t, s, "E2", false, "")

	_, err = f.svc.ViewEpisode(f.ctx, e2.ID, series.ViewerFromUser(f.reader))
	assert.Equal(t, series.ErrEpisodeLocked, errors.Cause(err))

	_, err = f.svc.ViewEpisode(f.ctx, e2.ID, series.AnonymousViewer())
	assert.Equal(t, series.ErrEpisodeLocked, errors.Cause(err))

	f.pass(t, f.reader, q1)
	rendered, err := f.svc.ViewEpisode(f.ctx, e2.ID, series.ViewerFromUser(f.reader))
	require.NoError(t, err)
	assert.Equal(t, "<h1>E2</h1>\n", rendered.ContentHTML)

	_, err = f.svc.ViewEpisode(f.ctx, "nope", series.AnonymousViewer())
	assert.Equal(t, series.ErrEpisodeNotFound, errors.Cause(err))
}

func TestService_NotifyUnlocked(t *testing.T) {
	f := setup(t)
	q1 := f.newExam(t, "Q1")
	s, err := f.svc.Create(f.ctx, f.author.ID, series.NewSeries{Title: "Go"})
	require.NoError(t, err)
	f.addEpisode(t, s, "E1", true, q1.ID)
	e2 := f.addEpisode(t, s, "E2", false, "")
	f.addEpisode(t, s, "E3", false, "")

	t.Run("nothing unlocked yet", func(t *testing.T) {
		eps, err := f.svc.NotifyUnlocked(f.ctx, f.reader, q1.ID)
		require.NoError(t, err)
		assert.Empty(t, eps)
		assert.Empty(t, f.mail.msgs)
	})

	res := f.pass(t, f.reader, q1)
	assert.True(t, res.FirstPass)

	eps, err := f.svc.NotifyUnlocked(f.ctx, f.reader, q1.ID)
	require.NoError(t, err)
	if assert.Len(t, eps, 1) {
		assert.Equal(t, e2.ID, eps[0].ID)
	}
	if assert.Len(t, f.mail.msgs, 1) {
		msg := f.mail.msgs[0]
		assert.Equal(t, "reader@tazama.io", msg.To[0].Address)
		assert.Equal(t, "episodes_unlocked", msg.TemplateName)
	}

	t.Run("author has nothing to unlock", func(t *testing.T) {
		eps, err := f.svc.NotifyUnlocked(f.ctx, f.author, q1.ID)
		require.NoError(t, err)
		assert.Empty(t, eps)
	})
}
