package siak

// Status is the canonical grade status of a course, its value doubles as the display
// text and the snapshot encoding.
type Status string

const (
	StatusEmpty        Status = "Empty"
	StatusNotPublished Status = "Not published"
	StatusPublished    Status = "Published"
)

// ParseStatus maps the status text of a history row to a canonical status, anything
// that is not exactly "Empty" or "Not published" counts as published. The text is
// compared as is, cell text is trimmed by the caller.
func ParseStatus(text string) Status {
	switch text {
	case string(StatusEmpty):
		return StatusEmpty
	case string(StatusNotPublished):
		return StatusNotPublished
	default:
		return StatusPublished
	}
}

// UnmarshalText also accepts the identifier form "NotPublished" so snapshots written
// with either spelling load the same way.
func (s *Status) UnmarshalText(text []byte) error {
	if string(text) == "NotPublished" {
		*s = StatusNotPublished
		return nil
	}
	*s = ParseStatus(string(text))
	return nil
}

// Course is one row of the current term on the HistoryByTerm page.
type Course struct {
	CourseCode    string `json:"course_code"`
	Curriculum    string `json:"curriculum"`
	NameLocal     string `json:"name_indonesian"`
	NameAlternate string `json:"name_english"`
	Status        Status `json:"status"`
}
