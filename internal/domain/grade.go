package domain

// FontGrades is the Fontainebleau bouldering scale, easiest first.
var FontGrades = []string{
	"4", "4+",
	"5a", "5b", "5c",
	"6a", "6a+", "6b", "6b+", "6c", "6c+",
	"7a", "7a+", "7b", "7b+", "7c", "7c+",
	"8a", "8a+", "8b", "8b+", "8c", "8c+", "9c",
}

// GradeIndex returns the position of grade in FontGrades, or -1 when the
// grade is not on the scale.
func GradeIndex(grade string) int {
	for i, g := range FontGrades {
		if g == grade {
			return i
		}
	}
	return -1
}
