package snapshot

import "ceksiak/internal/siak"

// IsUpdated returns true if a course in `courses` is not present in `previous` or if a
// course with the same code changed status.
//
// Courses that only exist in `previous` do not count as an update.
func IsUpdated(courses, previous []siak.Course) bool {
	for _, course := range courses {
		if !contains(previous, course) {
			return true
		}
		// only the first previous course with the same code is compared
		for _, prev := range previous {
			if prev.CourseCode != course.CourseCode {
				continue
			}
			if prev.Status != course.Status {
				return true
			}
			break
		}
	}
	return false
}

func contains(courses []siak.Course, target siak.Course) bool {
	for _, c := range courses {
		if c == target {
			return true
		}
	}
	return false
}
