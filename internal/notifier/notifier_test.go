package notifier

import (
	"ceksiak/internal/siak"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var testCourses = []siak.Course{
	{
		CourseCode:    "CSGE602012",
		Curriculum:    "09.00.12.01-2020",
		NameLocal:     "Aljabar Linier",
		NameAlternate: "Linear Algebra",
		Status:        siak.StatusNotPublished,
	},
	{
		CourseCode:    "CSGE602022",
		Curriculum:    "09.00.12.01-2020",
		NameLocal:     "Perancangan & Pemrograman Web",
		NameAlternate: "Web Design & Programming",
		Status:        siak.StatusPublished,
	},
}

func TestFormat(t *testing.T) {
	require.Equal(
		t,
		"- Aljabar Linier (Linear Algebra) - Not published\n"+
			"- Perancangan & Pemrograman Web (Web Design & Programming) - Published",
		Format(testCourses),
	)
	require.Equal(t, emptyBody, Format(nil))
	require.Equal(t, emptyBody, Format([]siak.Course{}))
}

type fakeNotifier struct {
	err      error
	received [][]siak.Course
}

func (f *fakeNotifier) Notify(ctx context.Context, courses []siak.Course) error {
	f.received = append(f.received, courses)
	return f.err
}

func TestMulti(t *testing.T) {
	failure := errors.New("smtp is down")
	first := &fakeNotifier{err: failure}
	second := &fakeNotifier{}

	err := Multi{first, second}.Notify(context.Background(), testCourses)
	require.ErrorIs(t, err, failure)
	require.Len(t, first.received, 1)
	require.Len(t, second.received, 1, "a failing notifier must not stop the others")

	require.NoError(t, Multi{second}.Notify(context.Background(), testCourses))
	require.NoError(t, Multi{}.Notify(context.Background(), testCourses))
}
