package sel_test

import (
	"testing"

	"github.com/searchlink/searchlink/sel"
)

func TestFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		include []string
		exclude []string
		colls   map[string]bool
	}{
		{
			name:    "both lists empty - allow all",
			include: []string{},
			exclude: []string{},
			colls: map[string]bool{
				"users":    true,
				"posts":    true,
				"comments": true,
			},
		},
		{
			name:    "include only",
			include: []string{"users", "posts"},
			colls: map[string]bool{
				"users":    true,
				"posts":    true,
				"comments": false,
			},
		},
		{
			name:    "exclude only",
			exclude: []string{"audit"},
			colls: map[string]bool{
				"users": true,
				"audit": false,
			},
		},
		{
			name:    "exclude wins over include",
			include: []string{"users", "audit"},
			exclude: []string{"audit"},
			colls: map[string]bool{
				"users": true,
				"audit": false,
				"posts": false,
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			filter := sel.MakeFilter(tt.include, tt.exclude)

			for coll, want := range tt.colls {
				if got := filter(coll); got != want {
					t.Errorf("filter(%q) = %v, want %v", coll, got, want)
				}
			}
		})
	}
}
