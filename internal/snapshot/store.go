package snapshot

import (
	"ceksiak/internal/assert"
	"ceksiak/internal/siak"
	"ceksiak/internal/telemetry"
	"context"
	"encoding/json"
	"fmt"
	"os"
)

const DefaultFile = "./courses.json"

const (
	report_file_load = "file.load"
	report_file_save = "file.save"
)

// Store persists the most recently observed course set.
type Store interface {
	// Load returns the last saved snapshot, `exists` is false only when nothing has
	// ever been saved.
	Load(ctx context.Context) (courses []siak.Course, exists bool)
	// Save replaces the stored snapshot.
	Save(ctx context.Context, courses []siak.Course) error
}

// FileStore keeps the snapshot as a JSON array in a single file.
type FileStore struct {
	path string
	tel  telemetry.API
}

func NewFileStore(path string, tel telemetry.API) FileStore {
	assert.NotNil(tel, "telemetry")
	if path == "" {
		path = DefaultFile
	}
	return FileStore{
		path: path,
		tel:  telemetry.NewScopedAPI("snapshot", tel),
	}
}

func (s FileStore) Path() string {
	return s.path
}

// Load never fails, a snapshot that cannot be read or decoded loads as an empty one.
func (s FileStore) Load(ctx context.Context) ([]siak.Course, bool) {
	contents, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.tel.ReportDebug("no snapshot yet", s.path)
		return nil, false
	}
	if err != nil {
		s.tel.ReportWarning(report_file_load, fmt.Errorf("read %s: %w", s.path, err))
		return []siak.Course{}, true
	}

	var courses []siak.Course
	err = json.Unmarshal(contents, &courses)
	if err != nil {
		s.tel.ReportWarning(report_file_load, fmt.Errorf("decode %s: %w", s.path, err))
		return []siak.Course{}, true
	}
	if courses == nil {
		courses = []siak.Course{}
	}
	return courses, true
}

func (s FileStore) Save(ctx context.Context, courses []siak.Course) error {
	if courses == nil {
		courses = []siak.Course{}
	}
	serialized, err := json.MarshalIndent(courses, "", "  ")
	if err != nil {
		return err
	}
	err = os.WriteFile(s.path, serialized, 0644)
	if err != nil {
		s.tel.ReportBroken(report_file_save, err)
		return fmt.Errorf("snapshot: save %s: %w", s.path, err)
	}
	return nil
}
