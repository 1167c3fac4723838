package siak

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

// anchorSelector matches the term header rows of the history table, data rows are
// styled with the alternating "x" and "alt" classes. The last header belongs to the
// current term.
const anchorSelector = "table.box > tbody > tr:not(.x):not(.alt)"

// column positions of a data row, counted over its <td> cells
const (
	colCourseCode    = 1
	colCurriculum    = 2
	colNameLocal     = 3
	colNameAlternate = 4
	colStatus        = 7
)

var errMalformedRow = errors.New("malformed course row")

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func cellText(s *goquery.Selection) string {
	text := strings.TrimSpace(s.Text())
	return innerWhitespace.ReplaceAllString(text, " ")
}

// hasContent reports whether a row has an element child or non-blank text, the table
// uses empty rows as spacers.
func hasContent(node *html.Node) bool {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.ElementNode:
			return true
		case html.TextNode:
			if strings.TrimSpace(child.Data) != "" {
				return true
			}
		}
	}
	return false
}

// decodeRow is the only place that knows where each field sits in a data row.
func decodeRow(row *goquery.Selection) (Course, error) {
	cells := row.ChildrenFiltered("td")
	if cells.Length() <= colStatus {
		return Course{}, fmt.Errorf("%w: expected at least %d cells, got %d", errMalformedRow, colStatus+1, cells.Length())
	}

	course := Course{
		CourseCode:    cellText(cells.Eq(colCourseCode)),
		Curriculum:    cellText(cells.Eq(colCurriculum)),
		NameLocal:     cellText(cells.Eq(colNameLocal)),
		NameAlternate: cellText(cells.Eq(colNameAlternate)),
		Status:        ParseStatus(cellText(cells.Eq(colStatus))),
	}
	if course.CourseCode == "" {
		return Course{}, fmt.Errorf("%w: empty course code", errMalformedRow)
	}
	return course, nil
}

// RowError describes a data row that was skipped.
type RowError struct {
	// position of the row among the siblings following the anchor row
	Index int
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Index, e.Err.Error())
}

func (e RowError) Unwrap() error {
	return e.Err
}

// HistoryResult is the outcome of parsing a HistoryByTerm page.
type HistoryResult struct {
	// Found is false when the page has no history table at all, which usually means the
	// portal served the login page instead.
	Found   bool
	Courses []Course
	// Skipped holds the rows that could not be decoded or repeated a course code.
	Skipped []RowError
}

// ParseHistory extracts the current term's courses from a HistoryByTerm document.
func ParseHistory(r io.Reader) (HistoryResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return HistoryResult{}, err
	}

	anchor := doc.Find(anchorSelector).Last()
	if anchor.Length() == 0 {
		return HistoryResult{Found: false}, nil
	}

	result := HistoryResult{
		Found:   true,
		Courses: []Course{},
	}
	seen := map[string]bool{}

	anchor.NextAll().Each(func(i int, row *goquery.Selection) {
		if !hasContent(row.Nodes[0]) {
			return
		}
		course, err := decodeRow(row)
		if err != nil {
			result.Skipped = append(result.Skipped, RowError{Index: i, Err: err})
			return
		}
		if seen[course.CourseCode] {
			result.Skipped = append(result.Skipped, RowError{
				Index: i,
				Err:   fmt.Errorf("duplicate course code %s", course.CourseCode),
			})
			return
		}
		seen[course.CourseCode] = true
		result.Courses = append(result.Courses, course)
	})

	return result, nil
}

// FetchCourses scrapes the current term. found is false (with a nil error) when the
// session has most likely expired: the history table is missing, the portal answered
// 401/403, or it redirected to another host.
func (c *Client) FetchCourses(ctx context.Context) (courses []Course, found bool, err error) {
	ctx, span := tracer.Start(ctx, "client:FetchCourses")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(historyPath)
	if errors.Is(err, errLeftPortal) {
		c.tel.ReportWarning(report_client_parse_history, "session expired", err)
		span.SetStatus(codes.Error, "redirected away from the portal")
		return nil, false, nil
	}
	if err != nil {
		c.tel.ReportBroken(
			report_client_fetch_courses,
			fmt.Errorf("fetch: %w", err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, false, fmt.Errorf("siak: fetch courses: %w", err)
	}
	if res.StatusCode() == http.StatusUnauthorized || res.StatusCode() == http.StatusForbidden {
		c.tel.ReportWarning(report_client_parse_history, "session expired", res.Status())
		span.SetStatus(codes.Error, "session expired")
		return nil, false, nil
	}
	if res.IsError() {
		err = statusError(res)
		c.tel.ReportBroken(report_client_fetch_courses, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("siak: fetch courses: %w", err)
	}

	result, err := ParseHistory(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(
			report_client_parse_history,
			fmt.Errorf("parse: %w", err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, false, fmt.Errorf("siak: parse history: %w", err)
	}

	if !result.Found {
		c.tel.ReportWarning(
			report_client_parse_history,
			"could not find history table",
			res.String(),
		)
		span.SetStatus(codes.Error, "history table not found")
		return nil, false, nil
	}

	for _, skipped := range result.Skipped {
		c.tel.ReportWarning(report_client_parse_history, skipped)
	}
	span.SetAttributes(
		attribute.Int("courses", len(result.Courses)),
		attribute.Int("skipped", len(result.Skipped)),
	)
	c.tel.ReportCount(report_client_fetch_courses, int64(len(result.Courses)))

	return result.Courses, true, nil
}
