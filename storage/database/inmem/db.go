package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/tazama/core/exam"
	"github.com/trezcool/tazama/core/series"
	"github.com/trezcool/tazama/core/user"
)

type (
	// DB is an in-memory store, safe for concurrent use.
	// Every repository call is atomic; there are no multi-call transactions.
	DB struct {
		user   *userTable
		series *seriesTable
		exam   *examTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	seriesTable struct {
		sync.RWMutex
		series   map[string]*series.Series
		episodes map[string]*series.Episode
	}

	examTable struct {
		sync.RWMutex
		exams       map[string]*exam.Exam
		submissions map[string]*exam.Submission
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		series: &seriesTable{
			series:   make(map[string]*series.Series),
			episodes: make(map[string]*series.Episode),
		},
		exam: &examTable{
			exams:       make(map[string]*exam.Exam),
			submissions: make(map[string]*exam.Submission),
		},
	}
}

func newID() string {
	return uuid.New().String()
}
