package sorter

import (
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func at(id string, ms int64) domain.EventWithID {
	return domain.EventWithID{ID: id, Event: domain.Event{ID: id, DateTime: ms}}
}

func idsOf(in []domain.EventWithID) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		out = append(out, e.ID)
	}
	return out
}

func TestSort(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	n := now.UnixMilli()

	tests := []struct {
		name string
		in   []domain.EventWithID
		want []string
	}{
		{
			name: "future ascending then past descending",
			in:   []domain.EventWithID{at("minus10", n-10), at("plus10", n+10), at("minus20", n-20)},
			want: []string{"plus10", "minus10", "minus20"},
		},
		{
			name: "starting now counts as upcoming",
			in:   []domain.EventWithID{at("past", n-1), at("now", n)},
			want: []string{"now", "past"},
		},
		{
			name: "ties keep input order",
			in:   []domain.EventWithID{at("b", n+5), at("a", n+5), at("y", n-5), at("x", n-5)},
			want: []string{"b", "a", "y", "x"},
		},
		{
			name: "empty",
			in:   nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idsOf(Sort(tt.in, now)))
		})
	}
}

func TestSort_DoesNotModifyInput(t *testing.T) {
	now := time.Now()
	n := now.UnixMilli()
	in := []domain.EventWithID{at("a", n-10), at("b", n+10)}
	_ = Sort(in, now)
	assert.Equal(t, []string{"a", "b"}, idsOf(in))
}

func TestSplit(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	n := now.UnixMilli()
	up, past := Split([]domain.EventWithID{at("p1", n-100), at("f2", n+200), at("f1", n+100), at("p2", n-50)}, now)

	assert.Equal(t, []string{"f1", "f2"}, idsOf(up))
	assert.Equal(t, []string{"p2", "p1"}, idsOf(past))
}
