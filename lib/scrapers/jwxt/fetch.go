package jwxt

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type FetchStatus int

const (
	FetchOK FetchStatus = iota
	// the portal answered but wants a fresh login
	FetchSessionExpired
	// transport error, non-2xx, or an unparseable page; possibly a
	// temporary portal glitch, callers must not mutate any state
	FetchTransient
)

func (s FetchStatus) String() string {
	switch s {
	case FetchOK:
		return "ok"
	case FetchSessionExpired:
		return "session_expired"
	case FetchTransient:
		return "transient"
	}
	return "unknown"
}

// FetchOutcome is the classified result of one score-page fetch. Exactly
// one of the three statuses applies; Fingerprint and Rows are only set on
// FetchOK, Err only on FetchTransient.
type FetchOutcome struct {
	Status      FetchStatus
	Fingerprint string
	Rows        []ScoreRow
	Err         error
}

func transient(err error) FetchOutcome {
	return FetchOutcome{Status: FetchTransient, Err: err}
}

// FetchScores retrieves the score list page and classifies the response.
// The fingerprint is a SHA-256 over the raw body: a coarse change
// detector, not a semantic one.
func (c *Client) FetchScores(ctx context.Context) FetchOutcome {
	ctx, span := tracer.Start(ctx, "FetchScores")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(scoreListPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return transient(err)
	}
	if !res.IsSuccess() {
		err := fmt.Errorf("score page: status %d", res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, "non-2xx response")
		return transient(err)
	}

	body := res.Body()
	if strings.Contains(string(body), markerSessionExpired) {
		span.SetAttributes(attribute.Bool("session_expired", true))
		return FetchOutcome{Status: FetchSessionExpired}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unparseable html")
		return transient(err)
	}
	table := doc.Find("table#dataList")
	if table.Length() == 0 {
		err := fmt.Errorf("score table missing from page")
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected page shape")
		return transient(err)
	}

	sum := sha256.Sum256(body)

	var rows []ScoreRow
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			// header
			return
		}
		cols := row.Find("td")
		if cols.Length() < 16 {
			return
		}
		cell := func(idx int) string {
			return strings.TrimSpace(cols.Eq(idx).Text())
		}
		rows = append(rows, ScoreRow{
			Term:           cell(1),
			CourseID:       cell(2),
			CourseName:     cell(3),
			Group:          cell(4),
			Score:          cell(5),
			ScoreFlag:      cell(6),
			Credit:         cell(7),
			TotalHours:     cell(8),
			GPA:            cell(9),
			RetakeTerm:     cell(10),
			AssessMethod:   cell(11),
			ExamNature:     cell(12),
			CourseAttr:     cell(13),
			CourseNature:   cell(14),
			CourseCategory: cell(15),
		})
	})

	span.SetAttributes(attribute.Int("rows", len(rows)))
	return FetchOutcome{
		Status:      FetchOK,
		Fingerprint: hex.EncodeToString(sum[:]),
		Rows:        rows,
	}
}
