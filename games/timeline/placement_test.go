/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

import "testing"

func years(ys ...int) []Song {
	tl := make([]Song, len(ys))
	for i, y := range ys {
		tl[i] = Song{Title: "song", Year: y}
	}
	return tl
}

func TestCorrectIndex(t *testing.T) {
	tests := []struct {
		name string
		tl   []Song
		year int
		want int
	}{
		{"empty timeline", nil, 1999, 0},
		{"before everything", years(1980, 1990), 1970, 0},
		{"between", years(1980, 1990), 1985, 1},
		{"after everything", years(1980, 1990), 2000, 2},
		{"ties go after incumbents", years(1980, 1990, 1990, 2000), 1990, 3},
		{"tie with first", years(1980, 1990), 1980, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CorrectIndex(tt.tl, tt.year); got != tt.want {
				t.Errorf("CorrectIndex(%v) = %d, want %d", tt.year, got, tt.want)
			}
		})
	}
}

func TestIsCorrect(t *testing.T) {
	tl := years(1970, 1990)

	if !IsCorrect(tl, 1980, 1) {
		t.Error("1980 at 1 should be correct")
	}
	if IsCorrect(tl, 1980, 0) {
		t.Error("1980 at 0 should be wrong")
	}
	if IsCorrect(tl, 1990, 1) {
		t.Error("1990 at 1 should be wrong, ties go after")
	}
}

func TestInsertSortedKeepsOrderAndInput(t *testing.T) {
	tl := years(1970, 1990)

	got := insertSorted(tl, Song{Title: "new", Year: 1980})

	if len(got) != 3 || got[1].Title != "new" {
		t.Fatalf("insertSorted = %+v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Year > got[i].Year {
			t.Fatalf("timeline not sorted: %+v", got)
		}
	}
	if len(tl) != 2 || tl[1].Year != 1990 {
		t.Fatalf("input modified: %+v", tl)
	}
}
