package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tazama/core/exam"
	"github.com/trezcool/tazama/core/series"
	emailsvc "github.com/trezcool/tazama/services/email"
)

func Test_examApi_create(t *testing.T) {
	app := setup(t)
	f := newSeriesFixture(t, app)

	valid := exam.NewExam{
		Title: "Concurrency",
		Questions: []exam.NewQuestion{
			{Prompt: "Unbuffered send blocks?", Choices: []string{"yes", "no"}, Answer: 0, Points: 2},
		},
	}
	outOfRange := valid
	outOfRange.Questions = []exam.NewQuestion{{Prompt: "?", Choices: []string{"a", "b"}, Answer: 2, Points: 1}}

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "admin required", token: app.getToken(t, f.reader), body: marshallObj(t, valid), wantCode: http.StatusForbidden},
		{
			name: "answer out of range", token: app.getToken(t, f.admin), body: marshallObj(t, outOfRange),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"questions[0].answer": "answer must be the index of one of the choices"}),
		},
		{name: "created", token: app.getToken(t, f.admin), body: marshallObj(t, valid), wantCode: http.StatusCreated},
	}, http.MethodPost, "/v1/exams")
}

func Test_examApi_retrieve(t *testing.T) {
	app := setup(t)
	f := newSeriesFixture(t, app)

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", path: "/v1/exams/" + f.examA.ID, wantCode: http.StatusUnauthorized},
		{name: "unknown exam", path: "/v1/exams/" + unknownID, token: app.getToken(t, f.reader), wantCode: http.StatusNotFound},
	}, http.MethodGet, "")

	t.Run("answers hidden", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/exams/"+f.examA.ID, app.getToken(t, f.reader))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var data struct {
			Title     string                   `json:"title"`
			Questions []map[string]interface{} `json:"questions"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
		assert.Equal(t, "Basics", data.Title)
		require.Len(t, data.Questions, 2)
		for _, q := range data.Questions {
			assert.NotContains(t, q, "answer")
		}
	})
}

func Test_examApi_submit(t *testing.T) {
	app := setup(t)
	f := newSeriesFixture(t, app)
	token := app.getToken(t, f.reader)
	path := "/v1/exams/" + f.examA.ID + "/submissions"
	q1, q2 := f.examA.Questions[0].ID, f.examA.Questions[1].ID

	submit := func(t *testing.T, answers map[string]int) SubmitResponse {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, path, token, marshallObj(t, exam.NewSubmission{Answers: answers}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp SubmitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized},
		{
			name: "unknown question", token: token, body: marshallObj(t, exam.NewSubmission{Answers: map[string]int{"lol": 0}}),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"answers.lol": "unknown question"}),
		},
		{
			name: "unknown exam", path: "/v1/exams/" + unknownID + "/submissions", token: token,
			body: marshallObj(t, exam.NewSubmission{Answers: map[string]int{q1: 0}}), wantCode: http.StatusNotFound,
		},
	}, http.MethodPost, path)

	t.Run("failed", func(t *testing.T) {
		resp := submit(t, map[string]int{q1: 1, q2: 1})
		assert.False(t, resp.Passed)
		assert.False(t, resp.FirstPass)
		assert.Equal(t, float64(0), resp.Percentage)
		assert.Empty(t, resp.UnlockedEpisodes)
		assert.Empty(t, emailsvc.SentMessages)
	})

	t.Run("first pass unlocks the next episode", func(t *testing.T) {
		resp := submit(t, map[string]int{q1: 0, q2: 1})
		assert.True(t, resp.Passed)
		assert.True(t, resp.FirstPass)
		assert.Equal(t, float64(50), resp.Percentage)
		require.Len(t, resp.UnlockedEpisodes, 1)
		assert.Equal(t, f.ep2.ID, resp.UnlockedEpisodes[0].ID)
		assert.Empty(t, resp.UnlockedEpisodes[0].Content)

		require.Len(t, emailsvc.SentMessages, 1)
		msg := emailsvc.SentMessages[0]
		assert.Equal(t, f.reader.Email, msg.To[0].Address)
		assert.Contains(t, msg.TextContent, "Go #2: Goroutines")
	})

	t.Run("later passes do not notify again", func(t *testing.T) {
		resp := submit(t, map[string]int{q1: 0, q2: 0})
		assert.True(t, resp.Passed)
		assert.False(t, resp.FirstPass)
		assert.Equal(t, float64(100), resp.Percentage)
		assert.Empty(t, resp.UnlockedEpisodes)
		assert.Len(t, emailsvc.SentMessages, 1)
	})

	t.Run("episode now readable", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/episodes/"+f.ep2.ID, token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_examApi_query(t *testing.T) {
	app := setup(t)
	f := newSeriesFixture(t, app)
	token := app.getToken(t, f.admin)

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "admin required", token: app.getToken(t, f.reader), wantCode: http.StatusForbidden},
		{name: "all", token: token, wantData: marshallList(t, f.examA, f.examB)},
		{name: "by id", path: "/v1/exams?id=" + f.examB.ID, token: token, wantData: marshallList(t, f.examB)},
		{name: "unknown id", path: "/v1/exams?id=" + unknownID, token: token, wantData: []byte("[]")},
	}, http.MethodGet, "/v1/exams")
}

func Test_examApi_destroy(t *testing.T) {
	app := setup(t)
	f := newSeriesFixture(t, app)
	path := "/v1/exams/" + f.examA.ID

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized},
		{name: "admin required", token: app.getToken(t, f.graduate), wantCode: http.StatusForbidden},
		{name: "unknown exam", path: "/v1/exams/" + unknownID, token: app.getToken(t, f.admin), wantCode: http.StatusNotFound},
		{name: "deleted", token: app.getToken(t, f.admin), wantCode: http.StatusNoContent},
		{name: "already deleted", token: app.getToken(t, f.admin), wantCode: http.StatusNotFound},
	}, http.MethodDelete, path)

	t.Run("gated episode locks again", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/series/"+f.s.ID, app.getToken(t, f.graduate))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var access series.SeriesAccess
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &access))
		require.Len(t, access.Episodes, 3)
		assert.Nil(t, access.Episodes[0].Exam, "exam link is cleared")
		assert.True(t, access.Episodes[0].RequiresExamToUnlock)
		if assert.NotNil(t, access.Episodes[1].Exam) {
			assert.Equal(t, f.examB.ID, access.Episodes[1].Exam.ID)
		}
		locks := []bool{access.Episodes[0].IsLocked, access.Episodes[1].IsLocked, access.Episodes[2].IsLocked}
		assert.Equal(t, []bool{true, true, true}, locks)
	})

	t.Run("gated episode unreadable", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/episodes/"+f.ep2.ID, app.getToken(t, f.graduate))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
