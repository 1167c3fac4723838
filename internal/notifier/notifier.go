package notifier

import (
	"ceksiak/internal/siak"
	"context"
	"errors"
	"fmt"
	"strings"
)

const Title = "CekSIAK"

const emptyBody = "No courses were found for the current term."

// Notifier delivers the current course set to a person.
type Notifier interface {
	Notify(ctx context.Context, courses []siak.Course) error
}

// Format renders one line per course, in order.
func Format(courses []siak.Course) string {
	if len(courses) == 0 {
		return emptyBody
	}
	lines := make([]string, len(courses))
	for i, c := range courses {
		lines[i] = fmt.Sprintf("- %s (%s) - %s", c.NameLocal, c.NameAlternate, c.Status)
	}
	return strings.Join(lines, "\n")
}

// Multi sends to every notifier even when some of them fail.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, courses []siak.Course) error {
	var errs []error
	for _, n := range m {
		err := n.Notify(ctx, courses)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
