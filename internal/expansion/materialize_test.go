package expansion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go-laue-run-monitor/internal/model"
)

func TestInsertSubjobsSplicesAfterJob(t *testing.T) {
	rows := jobRows(testJob(1, false, 11, 12), testJob(2, false, 21), testJob(3, false))

	got := InsertSubjobs(rows, 1)
	assert.Equal(t, []string{"J1", "S11", "S12", "J2", "J3"}, labels(got))

	got = InsertSubjobs(got, 2)
	assert.Equal(t, []string{"J1", "S11", "S12", "J2", "S21", "J3"}, labels(got))
}

func TestInsertSubjobsMissingJobIsNoop(t *testing.T) {
	rows := jobRows(testJob(1, false, 11))
	assert.Equal(t, []string{"J1"}, labels(InsertSubjobs(rows, 99)))
}

func TestInsertSubjobsEmptyListIsNoop(t *testing.T) {
	rows := jobRows(testJob(1, false), testJob(2, false, 21))
	assert.Equal(t, []string{"J1", "J2"}, labels(InsertSubjobs(rows, 1)))
}

func TestInsertSubjobsIsIdempotent(t *testing.T) {
	rows := jobRows(testJob(1, false, 11, 12), testJob(2, false, 21))

	once := InsertSubjobs(rows, 2)
	twice := InsertSubjobs(once, 2)
	assert.Equal(t, labels(once), labels(twice))
	assert.Equal(t, []string{"J1", "J2", "S21"}, labels(twice))
}

func TestInsertRemoveRoundTrip(t *testing.T) {
	base := func() []model.Row {
		rows := jobRows(testJob(1, false, 11), testJob(2, false, 21, 22), testJob(3, false, 31, 32, 33))
		return InsertSubjobs(rows, 1)
	}
	for _, id := range []int64{1, 2, 3} {
		rows := base()
		if id == 1 {
			rows = RemoveSubjobs(rows, 1)
		}
		before := labels(rows)
		after := labels(RemoveSubjobs(InsertSubjobs(rows, id), id))
		assert.Equal(t, before, after, "job %d", id)
	}
}

func TestMaterializePreservesOrderOfOtherRows(t *testing.T) {
	rows := jobRows(testJob(5, false, 51), testJob(4, false, 41, 42), testJob(3, false, 31))
	rows = InsertSubjobs(rows, 5)
	rows = InsertSubjobs(rows, 3)

	inserted := InsertSubjobs(rows, 4)
	assert.Equal(t, []string{"J5", "S51", "J4", "S41", "S42", "J3", "S31"}, labels(inserted))

	removed := RemoveSubjobs(inserted, 5)
	assert.Equal(t, []string{"J5", "J4", "S41", "S42", "J3", "S31"}, labels(removed))
}

func TestRemoveSubjobsToleratesDisplacedBlocks(t *testing.T) {
	j1 := testJob(1, false, 11, 12)
	j2 := testJob(2, false)
	rows := []model.Row{&j1.Subjobs[1], &j2, &j1, &j1.Subjobs[0]}

	assert.Equal(t, []string{"J2", "J1"}, labels(RemoveSubjobs(rows, 1)))
}

func TestMaterializeDoesNotMutateInput(t *testing.T) {
	rows := jobRows(testJob(1, false, 11), testJob(2, false))
	snapshot := labels(rows)

	_ = Materialize(rows, 1, Insert)
	assert.Equal(t, snapshot, labels(rows))

	expanded := Materialize(rows, 1, Insert)
	expandedLabels := labels(expanded)
	_ = Materialize(expanded, 1, Remove)
	assert.Equal(t, expandedLabels, labels(expanded))
}
