package series

import "github.com/trezcool/tazama/core/exam"

// EpisodeAccess is an Episode together with whether it is locked for a given viewer.
type EpisodeAccess struct {
	Episode
	IsLocked bool `json:"is_locked"`
}

// ComputeEpisodeLocks decides, for every episode of a series, whether it is locked for viewer.
//
// episodes must be sorted by OrderInSeries; the result has the same order.
// An episode is unlocked when:
//   - the viewer is a super admin or the episode's author, or
//   - the episode is not locked by default, or
//   - the episode right before it in the list requires its exam to unlock the next one,
//     has one, and that exam is in passed.
//
// Everything else is locked, the first episode included. Only the literal predecessor counts:
// a predecessor that is itself not gated does not pass the chain along.
func ComputeEpisodeLocks(episodes []Episode, viewer Viewer, passed exam.IDSet) []EpisodeAccess {
	accesses := make([]EpisodeAccess, 0, len(episodes))
	for i, ep := range episodes {
		accesses = append(accesses, EpisodeAccess{
			Episode:  ep,
			IsLocked: isLocked(episodes, i, viewer, passed),
		})
	}
	return accesses
}

func isLocked(episodes []Episode, i int, viewer Viewer, passed exam.IDSet) bool {
	ep := episodes[i]
	if viewer.isSuperAdmin() || viewer.isAuthor(ep.AuthorID) {
		return false
	}
	if !ep.IsLockedByDefault {
		return false
	}
	if i == 0 {
		return true
	}

	prev := episodes[i-1]
	if !prev.RequiresExamToUnlock || prev.Exam == nil {
		return true
	}
	return !passed.Has(prev.Exam.ID)
}

// GatingExamIDs returns the IDs of the exams that may unlock an episode of episodes.
func GatingExamIDs(episodes []Episode) []string {
	ids := exam.NewIDSet()
	for _, ep := range episodes {
		if ep.RequiresExamToUnlock && ep.Exam != nil {
			ids.Add(ep.Exam.ID)
		}
	}
	return ids.Slice()
}
