package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tazama/core/exam"
	"github.com/trezcool/tazama/core/series"
	"github.com/trezcool/tazama/core/user"
	testutil "github.com/trezcool/tazama/tests"
)

const unknownID = "0b7e3f4c-8d1a-4c2b-9f3e-5a6d7c8b9e0f"

type seriesFixture struct {
	author, admin, superAdmin, reader, graduate user.User
	examA, examB                                exam.Exam
	s                                           series.Series
	ep1, ep2, ep3                               series.Episode
}

// newSeriesFixture creates a 3 episodes series: ep1 gates ep2 behind examA, ep2 gates ep3 behind examB.
// graduate has passed examA.
func newSeriesFixture(t *testing.T, app *testApp) *seriesFixture {
	t.Helper()

	f := &seriesFixture{
		author:     testutil.CreateUser(t, app.usrRepo, "Author", "author", "author@tazama.io", "", []string{user.RoleAdmin}, true),
		admin:      testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@tazama.io", "", []string{user.RoleAdmin}, true),
		superAdmin: testutil.CreateUser(t, app.usrRepo, "Boss", "boss", "boss@tazama.io", "", []string{user.RoleSuperAdmin}, true),
		reader:     testutil.CreateUser(t, app.usrRepo, "Reader", "reader", "reader@tazama.io", "", []string{user.RoleUser}, true),
		graduate:   testutil.CreateUser(t, app.usrRepo, "Graduate", "graduate", "graduate@tazama.io", "", []string{user.RoleUser}, true),
	}
	f.examA = testutil.CreateExam(t, app.examSvc, f.author.ID, "Basics", 1, 1)
	f.examB = testutil.CreateExam(t, app.examSvc, f.author.ID, "Advanced", 1)
	f.s = testutil.CreateSeries(t, app.seriesSvc, f.author.ID, "Go")
	f.ep1 = testutil.AddEpisode(t, app.seriesSvc, f.s, "Intro", true, f.examA.ID)
	f.ep2 = testutil.AddEpisode(t, app.seriesSvc, f.s, "Goroutines", true, f.examB.ID)
	f.ep3 = testutil.AddEpisode(t, app.seriesSvc, f.s, "Channels", false, "")

	_, err := app.examSvc.Submit(app.ctx(), f.graduate.ID, f.examA.ID, exam.NewSubmission{
		Answers: map[string]int{f.examA.Questions[0].ID: 0},
	})
	require.NoError(t, err)
	return f
}

func Test_seriesApi_retrieve(t *testing.T) {
	app := setup(t)
	f := newSeriesFixture(t, app)
	path := "/v1/series/" + f.s.ID

	tests := []struct {
		name      string
		token     string
		wantLocks []bool
	}{
		{name: "anonymous", wantLocks: []bool{true, true, true}},
		{name: "reader", token: app.getToken(t, f.reader), wantLocks: []bool{true, true, true}},
		{name: "passed first exam", token: app.getToken(t, f.graduate), wantLocks: []bool{true, false, true}},
		{name: "admin without bypass", token: app.getToken(t, f.admin), wantLocks: []bool{true, true, true}},
		{name: "author", token: app.getToken(t, f.author), wantLocks: []bool{false, false, false}},
		{name: "super admin", token: app.getToken(t, f.superAdmin), wantLocks: []bool{false, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, path, tt.token)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var access series.SeriesAccess
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &access))
			assert.Equal(t, f.s.ID, access.ID)

			locks := make([]bool, 0, len(access.Episodes))
			for _, ep := range access.Episodes {
				locks = append(locks, ep.IsLocked)
				assert.Empty(t, ep.Content)
			}
			assert.Equal(t, tt.wantLocks, locks)
		})
	}

	runHTTPTests(t, app, []httpTest{
		{name: "malformed token", path: path, token: "lol", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, httpErr{Error: "invalid or expired jwt"})},
		{name: "unknown series", path: "/v1/series/" + unknownID, wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "series not found"})},
		{name: "invalid id", path: "/v1/series/lol", wantCode: http.StatusNotFound},
	}, http.MethodGet, "")
}

func Test_seriesApi_retrieve_superAdminRoleChecked(t *testing.T) {
	app := setup(t)
	f := newSeriesFixture(t, app)
	path := "/v1/series/" + f.s.ID
	token := app.getToken(t, f.superAdmin)

	demoted := f.superAdmin
	demoted.Roles = []string{user.RoleUser}
	_, err := app.usrRepo.UpdateUser(app.ctx(), demoted)
	require.NoError(t, err)

	req, rec := newAuthRequest(http.MethodGet, path, token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var access series.SeriesAccess
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &access))
	for _, ep := range access.Episodes {
		assert.True(t, ep.IsLocked, "demoted user keeps no bypass")
	}

	_, err = app.usrRepo.DeleteUsersByID(app.ctx(), []string{f.superAdmin.ID})
	require.NoError(t, err)
	runHTTPTests(t, app, []httpTest{
		{name: "deleted user", path: path, token: token, wantCode: http.StatusUnauthorized},
		{name: "deleted user, episode", path: "/v1/episodes/" + f.ep1.ID, token: token, wantCode: http.StatusUnauthorized},
	}, http.MethodGet, "")
}

func Test_seriesApi_query(t *testing.T) {
	app := setup(t)
	f := newSeriesFixture(t, app)
	rust := testutil.CreateSeries(t, app.seriesSvc, f.admin.ID, "Rust")

	runHTTPTests(t, app, []httpTest{
		{name: "all", path: "/v1/series", wantData: marshallList(t, f.s, rust)},
		{name: "search", path: "/v1/series?search=rus", wantData: marshallList(t, rust)},
		{name: "by author", path: "/v1/series?author=" + f.author.ID, wantData: marshallList(t, f.s)},
		{name: "ordering", path: "/v1/series?ordering=-title", token: app.getToken(t, f.reader), wantData: marshallList(t, rust, f.s)},
	}, http.MethodGet, "")
}

func Test_seriesApi_viewEpisode(t *testing.T) {
	app := setup(t)
	f := newSeriesFixture(t, app)
	locked := marshallObj(t, httpErr{Error: "episode is locked"})

	runHTTPTests(t, app, []httpTest{
		{name: "anonymous, first episode", path: "/v1/episodes/" + f.ep1.ID, wantCode: http.StatusForbidden, wantData: locked},
		{name: "reader, gated episode", path: "/v1/episodes/" + f.ep2.ID, token: app.getToken(t, f.reader), wantCode: http.StatusForbidden, wantData: locked},
		{name: "unknown episode", path: "/v1/episodes/" + unknownID, wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "episode not found"})},
		{name: "malformed token", path: "/v1/episodes/" + f.ep1.ID, token: "lol", wantCode: http.StatusUnauthorized},
	}, http.MethodGet, "")

	t.Run("passed, gated episode", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/episodes/"+f.ep2.ID, app.getToken(t, f.graduate))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var ep series.RenderedEpisode
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ep))
		assert.Equal(t, f.ep2.ID, ep.ID)
		assert.Equal(t, "<p>Welcome to <em>Goroutines</em></p>\n", ep.ContentHTML)
	})
}

func Test_seriesApi_create(t *testing.T) {
	app := setup(t)
	f := newSeriesFixture(t, app)

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "admin required", token: app.getToken(t, f.reader), body: marshallObj(t, series.NewSeries{Title: "Go"}), wantCode: http.StatusForbidden},
		{
			name: "required fields", token: app.getToken(t, f.admin), body: marshallObj(t, series.NewSeries{Title: "  "}),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"title": "this field is required"}),
		},
		{name: "created", token: app.getToken(t, f.admin), body: marshallObj(t, series.NewSeries{Title: " Rust "}), wantCode: http.StatusCreated},
	}, http.MethodPost, "/v1/series")

	list, err := app.seriesSvc.Query(app.ctx(), &series.QueryFilter{Search: "Rust"}, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Rust", list[0].Title)
	assert.Equal(t, f.admin.ID, list[0].AuthorID)
}

func Test_seriesApi_addEpisode(t *testing.T) {
	app := setup(t)
	f := newSeriesFixture(t, app)
	adminToken := app.getToken(t, f.admin)
	path := "/v1/series/" + f.s.ID + "/episodes"

	runHTTPTests(t, app, []httpTest{
		{name: "admin required", token: app.getToken(t, f.reader), body: marshallObj(t, series.NewEpisode{Title: "Select"}), wantCode: http.StatusForbidden},
		{
			name: "unknown exam", token: adminToken, body: marshallObj(t, series.NewEpisode{Title: "Select", ExamID: unknownID}),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"exam_id": "exam not found"}),
		},
		{
			name: "unknown series", path: "/v1/series/" + unknownID + "/episodes", token: adminToken,
			body: marshallObj(t, series.NewEpisode{Title: "Select"}), wantCode: http.StatusNotFound,
		},
		{name: "added", token: adminToken, body: marshallObj(t, series.NewEpisode{Title: "Select", ExamID: f.examB.ID}), wantCode: http.StatusCreated},
	}, http.MethodPost, path)

	episodes, err := app.seriesSvc.GetWithLocks(app.ctx(), f.s.ID, series.AnonymousViewer())
	require.NoError(t, err)
	require.Len(t, episodes.Episodes, 4)
	last := episodes.Episodes[3]
	assert.Equal(t, "Select", last.Title)
	assert.Equal(t, 4, last.OrderInSeries)
	assert.Equal(t, f.admin.ID, last.AuthorID)
	assert.True(t, last.IsLockedByDefault)
	require.NotNil(t, last.Exam)
	assert.Equal(t, f.examB.ID, last.Exam.ID)
}

func Test_seriesApi_updateEpisode(t *testing.T) {
	app := setup(t)
	f := newSeriesFixture(t, app)
	adminToken := app.getToken(t, f.admin)

	notLocked := false
	runHTTPTests(t, app, []httpTest{
		{name: "admin required", token: app.getToken(t, f.reader), body: []byte(`{}`), wantCode: http.StatusForbidden},
		{name: "unknown episode", path: "/v1/episodes/" + unknownID, token: adminToken, body: []byte(`{}`), wantCode: http.StatusNotFound},
		{
			name: "blank title", token: adminToken, body: []byte(`{"title": " "}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"title": "this field cannot be blank"}),
		},
		{name: "opened", token: adminToken, body: marshallObj(t, series.UpdateEpisode{IsLockedByDefault: &notLocked}), wantCode: http.StatusOK},
	}, http.MethodPut, "/v1/episodes/"+f.ep3.ID)

	access, err := app.seriesSvc.GetWithLocks(app.ctx(), f.s.ID, series.AnonymousViewer())
	require.NoError(t, err)
	assert.False(t, access.Episodes[2].IsLocked)
	assert.Equal(t, "Channels", access.Episodes[2].Title)
}

func Test_seriesApi_removeEpisode(t *testing.T) {
	app := setup(t)
	f := newSeriesFixture(t, app)

	runHTTPTests(t, app, []httpTest{
		{name: "admin required", token: app.getToken(t, f.reader), wantCode: http.StatusForbidden},
		{name: "removed", token: app.getToken(t, f.admin), wantCode: http.StatusNoContent},
		{name: "already removed", token: app.getToken(t, f.admin), wantCode: http.StatusNotFound},
	}, http.MethodDelete, "/v1/episodes/"+f.ep1.ID)

	// ep2 is now first, hence locked even for the graduate
	access, err := app.seriesSvc.GetWithLocks(app.ctx(), f.s.ID, series.ViewerFromUser(f.graduate))
	require.NoError(t, err)
	require.Len(t, access.Episodes, 2)
	assert.Equal(t, f.ep2.ID, access.Episodes[0].ID)
	assert.Equal(t, 1, access.Episodes[0].OrderInSeries)
	assert.True(t, access.Episodes[0].IsLocked)
	assert.Equal(t, 2, access.Episodes[1].OrderInSeries)
}

func Test_seriesApi_destroy(t *testing.T) {
	app := setup(t)
	f := newSeriesFixture(t, app)

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized},
		{name: "admin required", token: app.getToken(t, f.reader), wantCode: http.StatusForbidden},
		{name: "deleted", token: app.getToken(t, f.admin), wantCode: http.StatusNoContent},
		{name: "already deleted", token: app.getToken(t, f.admin), wantCode: http.StatusNotFound},
	}, http.MethodDelete, "/v1/series/"+f.s.ID)

	_, err := app.seriesSvc.GetEpisode(app.ctx(), f.ep1.ID)
	assert.Equal(t, series.ErrEpisodeNotFound, err)
}
