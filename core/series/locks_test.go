package series

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/tazama/core/exam"
	"github.com/trezcool/tazama/core/user"
)

const (
	authorID = "author"
	readerID = "reader"
)

func newEpisode(id string, order int, lockedByDefault, requiresExam bool, examID string) Episode {
	ep := Episode{
		ID:                   id,
		SeriesID:             "s1",
		Title:                id,
		OrderInSeries:        order,
		AuthorID:             authorID,
		IsLockedByDefault:    lockedByDefault,
		RequiresExamToUnlock: requiresExam,
	}
	if examID != "" {
		ep.Exam = &ExamRef{ID: examID}
	}
	return ep
}

func locks(accesses []EpisodeAccess) []bool {
	res := make([]bool, 0, len(accesses))
	for _, acc := range accesses {
		res = append(res, acc.IsLocked)
	}
	return res
}

func TestComputeEpisodeLocks(t *testing.T) {
	gated := []Episode{
		newEpisode("e1", 1, true, true, "q1"),
		newEpisode("e2", 2, true, false, ""),
		newEpisode("e3", 3, true, true, "q3"),
	}

	tests := []struct {
		name     string
		episodes []Episode
		viewer   Viewer
		passed   exam.IDSet
		want     []bool
	}{
		{
			name:     "super admin sees everything",
			episodes: gated,
			viewer:   UserViewer("admin", RoleSuperAdmin),
			passed:   exam.NewIDSet(),
			want:     []bool{false, false, false},
		},
		{
			name:     "author sees everything",
			episodes: gated,
			viewer:   UserViewer(authorID, RoleUser),
			passed:   exam.NewIDSet(),
			want:     []bool{false, false, false},
		},
		{
			name:     "user admin has no bypass",
			episodes: gated,
			viewer:   UserViewer("staff", RoleUserAdmin),
			passed:   exam.NewIDSet(),
			want:     []bool{true, true, true},
		},
		{
			name:     "anonymous viewer",
			episodes: gated,
			viewer:   AnonymousViewer(),
			passed:   exam.NewIDSet("q1", "q3"),
			want:     []bool{true, false, true},
		},
		{
			name:     "literal predecessor: q1 passed, q3 not",
			episodes: gated,
			viewer:   UserViewer(readerID, RoleUser),
			passed:   exam.NewIDSet("q1"),
			want:     []bool{true, false, true},
		},
		{
			name:     "literal predecessor: q3 passed does not skip e2",
			episodes: gated,
			viewer:   UserViewer(readerID, RoleUser),
			passed:   exam.NewIDSet("q1", "q3"),
			want:     []bool{true, false, true},
		},
		{
			name: "opt out, even first",
			episodes: []Episode{
				newEpisode("e1", 1, false, false, ""),
				newEpisode("e2", 2, false, false, ""),
			},
			viewer: UserViewer(readerID, RoleUser),
			passed: exam.NewIDSet(),
			want:   []bool{false, false},
		},
		{
			name: "first episode locked by default",
			episodes: []Episode{
				newEpisode("e1", 1, true, true, "q1"),
			},
			viewer: UserViewer(readerID, RoleUser),
			passed: exam.NewIDSet("q1"),
			want:   []bool{true},
		},
		{
			name: "chain: exam passed",
			episodes: []Episode{
				newEpisode("a", 1, false, true, "e"),
				newEpisode("b", 2, true, false, ""),
			},
			viewer: UserViewer(readerID, RoleUser),
			passed: exam.NewIDSet("e"),
			want:   []bool{false, false},
		},
		{
			name: "chain: exam not passed",
			episodes: []Episode{
				newEpisode("a", 1, false, true, "e"),
				newEpisode("b", 2, true, false, ""),
			},
			viewer: UserViewer(readerID, RoleUser),
			passed: exam.NewIDSet("other"),
			want:   []bool{false, true},
		},
		{
			name: "fail closed on missing exam",
			episodes: []Episode{
				newEpisode("a", 1, false, true, ""),
				newEpisode("b", 2, true, false, ""),
			},
			viewer: UserViewer(readerID, RoleUser),
			passed: exam.NewIDSet("e"),
			want:   []bool{false, true},
		},
		{
			name: "exam linked but not required",
			episodes: []Episode{
				newEpisode("a", 1, false, false, "e"),
				newEpisode("b", 2, true, false, ""),
			},
			viewer: UserViewer(readerID, RoleUser),
			passed: exam.NewIDSet("e"),
			want:   []bool{false, true},
		},
		{
			name: "non gated episode breaks the chain",
			episodes: []Episode{
				newEpisode("a", 1, true, true, "q1"),
				newEpisode("b", 2, false, false, ""),
				newEpisode("c", 3, true, false, ""),
			},
			viewer: UserViewer(readerID, RoleUser),
			passed: exam.NewIDSet("q1"),
			want:   []bool{true, false, true},
		},
		{
			name:     "empty series",
			episodes: nil,
			viewer:   UserViewer(readerID, RoleUser),
			passed:   exam.NewIDSet(),
			want:     []bool{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeEpisodeLocks(tt.episodes, tt.viewer, tt.passed)
			if assert.Len(t, got, len(tt.episodes)) {
				for i, acc := range got {
					assert.Equal(t, tt.episodes[i].ID, acc.ID)
				}
			}
			assert.Equal(t, tt.want, locks(got))
		})
	}
}

func TestComputeEpisodeLocks_perEpisodeAuthor(t *testing.T) {
	episodes := []Episode{
		newEpisode("e1", 1, true, false, ""),
		newEpisode("e2", 2, true, false, ""),
	}
	episodes[1].AuthorID = readerID

	got := ComputeEpisodeLocks(episodes, UserViewer(readerID, RoleUser), exam.NewIDSet())
	assert.Equal(t, []bool{true, false}, locks(got))
}

func TestComputeEpisodeLocks_anonymousNeverAuthor(t *testing.T) {
	episodes := []Episode{newEpisode("e1", 1, true, false, "")}
	episodes[0].AuthorID = ""

	got := ComputeEpisodeLocks(episodes, AnonymousViewer(), nil)
	assert.Equal(t, []bool{true}, locks(got))
}

func TestGatingExamIDs(t *testing.T) {
	episodes := []Episode{
		newEpisode("e1", 1, true, true, "q2"),
		newEpisode("e2", 2, true, false, "q9"),
		newEpisode("e3", 3, true, true, ""),
		newEpisode("e4", 4, true, true, "q1"),
		newEpisode("e5", 5, true, true, "q2"),
	}
	assert.Equal(t, []string{"q1", "q2"}, GatingExamIDs(episodes))
}

func TestViewerFromUser(t *testing.T) {
	tests := []struct {
		roles []string
		want  Role
	}{
		{roles: []string{"user:"}, want: RoleUser},
		{roles: []string{"admin:"}, want: RoleUserAdmin},
		{roles: []string{"user:", "admin:super"}, want: RoleSuperAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			v := ViewerFromUser(user.User{ID: "u", Roles: tt.roles})
			role, ok := v.Role()
			assert.True(t, ok)
			assert.Equal(t, tt.want, role)
			assert.False(t, v.IsAnonymous())
		})
	}

	anon := AnonymousViewer()
	_, ok := anon.ID()
	assert.False(t, ok)
	assert.True(t, anon.IsAnonymous())
}
