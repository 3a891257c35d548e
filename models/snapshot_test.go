package models

import (
	"reflect"
	"testing"
)

func TestSelectSnapshotFields(t *testing.T) {
	tests := []struct {
		name      string
		available map[string]bool
		want      []string
	}{
		{
			name:      "canonical name field wins",
			available: map[string]bool{"full_name": true, "first_name": true, "last_name": true, "id": true},
			want:      []string{"full_name"},
		},
		{
			name:      "name field priority order",
			available: map[string]bool{"child_name": true, "name": true, "id": true},
			want:      []string{"child_name"},
		},
		{
			name:      "name pair when no single field",
			available: map[string]bool{"first_name": true, "last_name": true, "id": true},
			want:      []string{"first_name", "last_name"},
		},
		{
			name:      "incomplete pair is useless",
			available: map[string]bool{"first_name": true, "id": true},
			want:      []string{"id"},
		},
		{
			name:      "name plus first available date",
			available: map[string]bool{"full_name": true, "baptism_date": true, "record_date": true},
			want:      []string{"full_name", "baptism_date"},
		},
		{
			name:      "date alone",
			available: map[string]bool{"marriage_date": true, "id": true},
			want:      []string{"marriage_date"},
		},
		{
			name:      "id fallback",
			available: map[string]bool{"id": true, "notes": true},
			want:      []string{"id"},
		},
		{
			name:      "nothing usable",
			available: map[string]bool{"notes": true},
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectSnapshotFields(tt.available)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
