package mapslicehelp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func TestOrderedMapValues(t *testing.T) {
	m := orderedmap.New[int, string]()
	m.Set(3, "c")
	m.Set(1, "a")
	m.Set(2, "b")
	m.Set(3, "C")

	assert.Equal(t, []string{"C", "a", "b"}, OrderedMapValues(m))
	assert.Empty(t, OrderedMapValues(orderedmap.New[int, string]()))
}

func TestSortedKeys(t *testing.T) {
	tests := []struct {
		name string
		m    map[string]any
		want []string
	}{
		{name: "nil", m: nil, want: []string{}},
		{name: "mixed", m: map[string]any{"zone": 1, "Area": 2.5, "name": "x"}, want: []string{"Area", "name", "zone"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SortedKeys(tt.m))
		})
	}
}
