package expansion

import (
	"fmt"

	"go-laue-run-monitor/internal/model"
)

func testJob(id int64, autoExpand bool, subjobIDs ...int64) model.JobRow {
	j := model.JobRow{JobID: id, Status: model.StatusFinished}
	subjobs := make([]model.SubJobRow, 0, len(subjobIDs))
	for _, sid := range subjobIDs {
		subjobs = append(subjobs, model.SubJobRow{SubJobID: sid, ParentJobID: id, Status: model.StatusFinished})
	}
	j.SetSubjobs(subjobs)
	j.ShouldAutoExpand = autoExpand
	return j
}

func jobRows(jobs ...model.JobRow) []model.Row {
	rows := make([]model.Row, 0, len(jobs))
	for i := range jobs {
		rows = append(rows, &jobs[i])
	}
	return rows
}

// labels renders rows as J<id> / S<id> for compact assertions.
func labels(rows []model.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		switch v := r.(type) {
		case *model.JobRow:
			out = append(out, fmt.Sprintf("J%d", v.JobID))
		case *model.SubJobRow:
			out = append(out, fmt.Sprintf("S%d", v.SubJobID))
		}
	}
	return out
}
