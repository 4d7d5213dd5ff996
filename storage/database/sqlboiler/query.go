package boiledrepos

import (
	"strconv"
	"strings"

	"github.com/trezcool/tazama/core"
)

// where accumulates AND-ed conditions; `?` placeholders are numbered in order.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	n := len(w.args)
	var sb strings.Builder
	for _, r := range cond {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	w.args = append(w.args, args...)
	w.conds = append(w.conds, "("+sb.String()+")")
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy renders ordering, dropping fields that aren't in columns.
func orderBy(ordering []core.DBOrdering, columns map[string]bool, dflt string) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if columns[ord.Field] {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		return " ORDER BY " + dflt
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}

func getExec(repoExec core.DBExecutor, svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repoExec
}
