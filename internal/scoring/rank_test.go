package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pavelanni/gradeport/internal/model"
)

func TestAssignRanks(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   []int
	}{
		{"empty", nil, nil},
		{"single", []float64{50}, []int{1}},
		{"tie at top", []float64{90, 90, 80}, []int{1, 1, 3}},
		{"tie in middle", []float64{90, 80, 80, 70}, []int{1, 2, 2, 4}},
		{"unsorted input", []float64{70, 90, 80, 90}, []int{1, 1, 3, 4}},
		{"fractional", []float64{12.5, 12.5, 12}, []int{1, 1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in []model.ExamResult
			for _, s := range tt.scores {
				in = append(in, model.ExamResult{TotalScore: s})
			}
			ranked := AssignRanks(in)
			var got []int
			for _, r := range ranked {
				got = append(got, r.Rank)
				assert.Equal(t, len(tt.scores), r.TotalStudents)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssignRanksStableAndPure(t *testing.T) {
	in := []model.ExamResult{
		{Student: model.Student{ID: "a"}, TotalScore: 80},
		{Student: model.Student{ID: "b"}, TotalScore: 90},
		{Student: model.Student{ID: "c"}, TotalScore: 80},
		{Student: model.Student{ID: "d"}, TotalScore: 90},
	}
	ranked := AssignRanks(in)

	var order []string
	for _, r := range ranked {
		order = append(order, r.Student.ID)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, order)
	assert.Equal(t, "a", in[0].Student.ID)
	assert.Zero(t, in[0].Rank)
}
