// Package sheettest provides an in-memory Google Sheets worksheet served
// over an httpmock transport, for tests of code built on the google mirror.
package sheettest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/jarcoal/httpmock"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	SpreadsheetID = "sid"
	SheetName     = "Expenses"
	sheetID       = 0
	endpoint      = "https://sheets.test/"
)

var (
	valuesGet      = regexp.MustCompile(`^https://sheets\.test/v4/spreadsheets/sid/values/`)
	valuesAppend   = regexp.MustCompile(`^https://sheets\.test/v4/spreadsheets/sid/values/.+:append`)
	spreadsheetGet = regexp.MustCompile(`^https://sheets\.test/v4/spreadsheets/sid(\?.*)?$`)
	batchUpdate    = regexp.MustCompile(`^https://sheets\.test/v4/spreadsheets/sid:batchUpdate(\?.*)?$`)
)

// Sheet is a single worksheet whose rows change as the API is called.
type Sheet struct {
	mu   sync.Mutex
	rows [][]any

	// gate, when set, holds every column read until gateN reads are in
	// flight or gateWait passes.
	gate     chan struct{}
	gateN    int
	gateWait time.Duration
	reads    int
}

// New returns a sheet whose column A holds ids, one per row.
func New(ids ...any) *Sheet {
	s := &Sheet{}
	for _, id := range ids {
		s.rows = append(s.rows, []any{id})
	}
	return s
}

// HoldReads makes column reads wait for one another: each read blocks until
// n reads have started or wait elapses. It lets a test overlap two
// read-then-write sequences that would otherwise run back to back.
func (s *Sheet) HoldReads(n int, wait time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	s.gateN = n
	s.gateWait = wait
	s.reads = 0
}

// Column returns column A as text, in row order.
func (s *Sheet) Column() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.rows))
	for i, row := range s.rows {
		if len(row) > 0 {
			out[i] = fmt.Sprint(row[0])
		}
	}
	return out
}

// Service returns a Sheets service wired to the fake worksheet.
func (s *Sheet) Service(ctx context.Context) (*gsheet.Service, error) {
	transport := httpmock.NewMockTransport()
	transport.RegisterRegexpResponder(http.MethodGet, valuesGet, s.readColumn)
	transport.RegisterRegexpResponder(http.MethodPost, valuesAppend, s.append)
	transport.RegisterRegexpResponder(http.MethodGet, spreadsheetGet, httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
		"spreadsheetId": SpreadsheetID,
		"sheets": []map[string]any{
			{"properties": map[string]any{"sheetId": sheetID, "title": SheetName}},
		},
	}))
	transport.RegisterRegexpResponder(http.MethodPost, batchUpdate, s.batchUpdate)

	return gsheet.NewService(ctx,
		goption.WithHTTPClient(&http.Client{Transport: transport}),
		goption.WithEndpoint(endpoint))
}

func (s *Sheet) readColumn(*http.Request) (*http.Response, error) {
	s.mu.Lock()
	gate := s.gate
	if gate != nil {
		s.reads++
		if s.reads == s.gateN {
			close(gate)
			s.gate = nil
		}
	}
	wait := s.gateWait
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-time.After(wait):
		}
	}

	s.mu.Lock()
	values := make([][]any, len(s.rows))
	for i, row := range s.rows {
		values[i] = []any{row[0]}
	}
	s.mu.Unlock()

	return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
		"range":          SheetName + "!A1:A",
		"majorDimension": "ROWS",
		"values":         values,
	})
}

func (s *Sheet) append(req *http.Request) (*http.Response, error) {
	var vr gsheet.ValueRange
	if err := json.NewDecoder(req.Body).Decode(&vr); err != nil {
		return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
	}

	s.mu.Lock()
	start := len(s.rows) + 1
	s.rows = append(s.rows, vr.Values...)
	end := len(s.rows)
	s.mu.Unlock()

	return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
		"spreadsheetId": SpreadsheetID,
		"updates": map[string]any{
			"updatedRange": fmt.Sprintf("%s!A%d:F%d", SheetName, start, end),
			"updatedRows":  end - start + 1,
		},
	})
}

func (s *Sheet) batchUpdate(req *http.Request) (*http.Response, error) {
	var body gsheet.BatchUpdateSpreadsheetRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range body.Requests {
		if r.DeleteDimension == nil || r.DeleteDimension.Range == nil {
			continue
		}
		rng := r.DeleteDimension.Range
		if rng.StartIndex < 0 || rng.EndIndex > int64(len(s.rows)) || rng.StartIndex >= rng.EndIndex {
			return httpmock.NewStringResponse(http.StatusBadRequest,
				`{"error":{"code":400,"message":"Invalid requests[0].deleteDimension: range out of bounds"}}`), nil
		}
		s.rows = append(s.rows[:rng.StartIndex], s.rows[rng.EndIndex:]...)
	}
	return httpmock.NewStringResponse(http.StatusOK, `{"spreadsheetId":"sid","replies":[{}]}`), nil
}
