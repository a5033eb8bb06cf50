/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

// CorrectIndex returns the index of the first song on tl released after
// year, or len(tl). A song sharing its year with incumbents belongs after
// them.
func CorrectIndex(tl []Song, year int) int {
	for i, s := range tl {
		if s.Year > year {
			return i
		}
	}
	return len(tl)
}

// IsCorrect reports whether pos is where a song from year belongs on tl.
func IsCorrect(tl []Song, year, pos int) bool {
	return CorrectIndex(tl, year) == pos
}

// insertSorted returns tl with s inserted at its correct index. tl is never
// modified in place, so views handed out earlier stay valid.
func insertSorted(tl []Song, s Song) []Song {
	i := CorrectIndex(tl, s.Year)

	out := make([]Song, 0, len(tl)+1)
	out = append(out, tl[:i]...)
	out = append(out, s)
	out = append(out, tl[i:]...)

	return out
}
