package exam

// PassMarkPercent is the percentage of an exam's total points a submission must reach for the exam to be passed.
const PassMarkPercent = 50

// TotalPoints sums the points of questions.
func TotalPoints(questions []Question) int {
	var total int
	for _, q := range questions {
		total += q.Points
	}
	return total
}

// Percentage returns score as a percentage of totalPoints; 0 when the exam is worth no points.
func Percentage(score float64, totalPoints int) float64 {
	if totalPoints <= 0 {
		return 0
	}
	return (score / float64(totalPoints)) * 100
}

// IsPassed reports whether any of submissions reaches the pass mark for e.
// Submissions for other exams are ignored.
func IsPassed(e Exam, submissions []Submission) bool {
	total := e.TotalPoints()
	for _, sub := range submissions {
		if sub.ExamID == e.ID && Percentage(sub.Score, total) >= PassMarkPercent {
			return true
		}
	}
	return false
}

// PassedExamIDs returns the IDs of exams passed by at least one of submissions.
// submissions are expected to belong to a single user.
func PassedExamIDs(exams []Exam, submissions []Submission) IDSet {
	byExam := make(map[string][]Submission, len(exams))
	for _, sub := range submissions {
		byExam[sub.ExamID] = append(byExam[sub.ExamID], sub)
	}

	passed := make(IDSet)
	for _, e := range exams {
		if IsPassed(e, byExam[e.ID]) {
			passed.Add(e.ID)
		}
	}
	return passed
}

// Grade scores answers against e: the sum of the points of correctly answered questions.
func Grade(e Exam, answers map[string]int) float64 {
	var score int
	for _, q := range e.Questions {
		if choice, ok := answers[q.ID]; ok && choice == q.Answer {
			score += q.Points
		}
	}
	return float64(score)
}
