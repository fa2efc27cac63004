package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/gateway"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

type fakeCommands struct {
	added      []services.AddExpenseInput
	addErr     error
	listed     []core.Expense
	lastFilter core.Filter
	deleted    []int64
	deleteErr  error
	importRes  services.ImportResult
	importErr  error
	importRows []services.ImportRow
	summary    core.Summary
	tips       string
	tipsErr    error
	category   core.Category
	catErr     error
	catCalls   int
}

func (f *fakeCommands) AddExpense(_ context.Context, in services.AddExpenseInput) (core.Expense, error) {
	if f.addErr != nil {
		return core.Expense{}, f.addErr
	}
	f.added = append(f.added, in)
	return core.Expense{
		ID:            int64(len(f.added)),
		Date:          in.Date,
		Description:   in.Description,
		Category:      in.Category,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
	}, nil
}

func (f *fakeCommands) ListExpenses(_ context.Context, flt core.Filter) ([]core.Expense, error) {
	f.lastFilter = flt
	return flt.Apply(f.listed), nil
}

func (f *fakeCommands) DeleteExpense(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCommands) ImportExpenses(_ context.Context, rows []services.ImportRow) (services.ImportResult, error) {
	f.importRows = rows
	return f.importRes, f.importErr
}

func (f *fakeCommands) Summary(context.Context) (core.Summary, error) { return f.summary, nil }

func (f *fakeCommands) Tips(context.Context) (string, error) { return f.tips, f.tipsErr }

func (f *fakeCommands) Categorize(context.Context, string) (core.Category, error) {
	f.catCalls++
	return f.category, f.catErr
}

func newTestServer(t *testing.T, svc ExpenseCommands, opts Options) *Server {
	t.Helper()
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return body.Error
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{}, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestReadyReportsUnavailableStore(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{}, Options{
		Ready: func(context.Context) error { return errors.New("database is locked") },
	})
	rr := do(srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := decodeError(t, rr).Code; got != codeNotReady {
		t.Fatalf("code=%q", got)
	}
}

func TestResponsesCarryRequestIDAndSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{}, Options{})

	rr := do(srv, http.MethodGet, "/healthz", "")
	if rr.Header().Get(trace.HeaderRequestID) == "" {
		t.Fatal("missing request id header")
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options=%q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options=%q", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderRequestID, "client-123")
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if got := rr.Header().Get(trace.HeaderRequestID); got != "client-123" {
		t.Fatalf("request id=%q, want client supplied", got)
	}
}

func TestReadyReportsStats(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{category: core.Food}, Options{RateLimitPerMinute: 1})

	do(srv, http.MethodPost, "/categorize", `{"description":"x"}`)
	do(srv, http.MethodPost, "/categorize", `{"description":"x"}`)
	do(srv, http.MethodGet, "/.env", "")

	rr := do(srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ready" {
		t.Fatalf("status=%q", resp.Status)
	}
	// the readiness request itself is counted
	if resp.Stats.Requests != 4 {
		t.Fatalf("requests=%d", resp.Stats.Requests)
	}
	if resp.Stats.RateLimited != 1 {
		t.Fatalf("rate_limited=%d", resp.Stats.RateLimited)
	}
	if resp.Stats.SuspiciousRequests != 1 {
		t.Fatalf("suspicious_requests=%d", resp.Stats.SuspiciousRequests)
	}
}

func TestCreateExpense(t *testing.T) {
	svc := &fakeCommands{}
	srv := newTestServer(t, svc, Options{})

	rr := do(srv, http.MethodPost, "/expenses",
		`{"date":"2024-03-01","description":"Coffee","amount":"3,50","payment_method":"Card","category":"Food"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var e core.Expense
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.ID != 1 || e.Amount != 3.5 || e.Category != "Food" {
		t.Fatalf("unexpected expense %+v", e)
	}
	if len(svc.added) != 1 || svc.added[0].PaymentMethod != "Card" {
		t.Fatalf("service input %+v", svc.added)
	}
}

func TestCreateExpenseOmittedDateIsPassedEmpty(t *testing.T) {
	svc := &fakeCommands{}
	srv := newTestServer(t, svc, Options{})

	rr := do(srv, http.MethodPost, "/expenses", `{"description":"Bus","amount":2,"auto_categorize":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if svc.added[0].Date != "" || !svc.added[0].AutoCategorize {
		t.Fatalf("service input %+v", svc.added[0])
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"missing description", `{"amount":1}`, http.StatusUnprocessableEntity, codeValidation},
		{"zero amount", `{"description":"x","amount":0}`, http.StatusUnprocessableEntity, codeValidation},
		{"negative amount", `{"description":"x","amount":-4}`, http.StatusUnprocessableEntity, codeValidation},
		{"bad date", `{"description":"x","amount":1,"date":"01/03/2024"}`, http.StatusUnprocessableEntity, codeValidation},
		{"unknown category", `{"description":"x","amount":1,"category":"Pets"}`, http.StatusUnprocessableEntity, codeValidation},
		{"malformed json", `{"description":`, http.StatusBadRequest, codeInvalidJSON},
		{"unknown field", `{"description":"x","amount":1,"colour":"red"}`, http.StatusBadRequest, codeInvalidJSON},
		{"non numeric amount", `{"description":"x","amount":"abc"}`, http.StatusBadRequest, codeInvalidJSON},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeCommands{}
			srv := newTestServer(t, svc, Options{})
			rr := do(srv, http.MethodPost, "/expenses", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tc.status, rr.Body.String())
			}
			if got := decodeError(t, rr).Code; got != tc.code {
				t.Fatalf("code=%q want %q", got, tc.code)
			}
			if len(svc.added) != 0 {
				t.Fatal("service called for invalid request")
			}
		})
	}
}

func TestCreateExpenseValidationMessageUsesJSONNames(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{}, Options{})
	rr := do(srv, http.MethodPost, "/expenses", `{"amount":1}`)
	if msg := decodeError(t, rr).Message; !strings.Contains(msg, "description is required") {
		t.Fatalf("message=%q", msg)
	}
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{services.ErrEmptyDescription, http.StatusUnprocessableEntity},
		{services.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{gateway.ErrMissingCredential, http.StatusServiceUnavailable},
		{errors.New("disk I/O error"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			srv := newTestServer(t, &fakeCommands{addErr: tc.err}, Options{})
			rr := do(srv, http.MethodPost, "/expenses", `{"description":"x","amount":1}`)
			if rr.Code != tc.status {
				t.Fatalf("status=%d want %d", rr.Code, tc.status)
			}
		})
	}
}

func TestInternalErrorsAreNotExposed(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{addErr: errors.New("sqlite: /secret/path locked")}, Options{})
	rr := do(srv, http.MethodPost, "/expenses", `{"description":"x","amount":1}`)
	if msg := decodeError(t, rr).Message; msg != internalErrorDetail {
		t.Fatalf("message=%q", msg)
	}
}

func TestListExpensesWithFilter(t *testing.T) {
	svc := &fakeCommands{listed: []core.Expense{
		{ID: 3, Date: "2024-03-03", Description: "Taxi", Category: "Transport", Amount: 9, PaymentMethod: "Cash"},
		{ID: 2, Date: "2024-03-02", Description: "Lunch", Category: "Food", Amount: 12, PaymentMethod: "Card"},
		{ID: 1, Date: "2024-02-01", Description: "Rent", Category: "Housing", Amount: 800, PaymentMethod: "Bank"},
	}}
	srv := newTestServer(t, svc, Options{})

	rr := do(srv, http.MethodGet, "/expenses?category=Food&category=Transport&from=2024-03-01&to=2024-03-31", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || resp.Expenses[0].ID != 3 || resp.Expenses[1].ID != 2 {
		t.Fatalf("unexpected listing %+v", resp)
	}
	if len(svc.lastFilter.Categories) != 2 {
		t.Fatalf("filter=%+v", svc.lastFilter)
	}
}

func TestListExpensesEmptyIsArray(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{}, Options{})
	rr := do(srv, http.MethodGet, "/expenses", "")
	if !strings.Contains(rr.Body.String(), `"expenses":[]`) {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestListExpensesRejectsBadDate(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{}, Options{})
	rr := do(srv, http.MethodGet, "/expenses?from=yesterday&to=2024-01-01", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestDeleteExpense(t *testing.T) {
	svc := &fakeCommands{}
	srv := newTestServer(t, svc, Options{})

	rr := do(srv, http.MethodDelete, "/expenses/42", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rr.Code)
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != 42 {
		t.Fatalf("deleted=%v", svc.deleted)
	}

	for _, path := range []string{"/expenses/abc", "/expenses/0", "/expenses/-3"} {
		if rr := do(srv, http.MethodDelete, path, ""); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestDeleteMissingExpense(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{deleteErr: services.ErrExpenseNotFound}, Options{})
	rr := do(srv, http.MethodDelete, "/expenses/7", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := decodeError(t, rr).Code; got != codeNotFound {
		t.Fatalf("code=%q", got)
	}
}

func TestImportExpenses(t *testing.T) {
	svc := &fakeCommands{importRes: services.ImportResult{Imported: []core.Expense{
		{ID: 1, Date: "2024-01-01", Description: "Milk", Category: "Food", Amount: 2, PaymentMethod: "Other"},
	}}}
	srv := newTestServer(t, svc, Options{})

	rr := do(srv, http.MethodPost, "/expenses/import", `{"rows":[{"date":"2024-01-01","description":"Milk","amount":"2"}]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp importResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Imported != 1 || resp.Error != nil {
		t.Fatalf("resp=%+v", resp)
	}
	if len(svc.importRows) != 1 || svc.importRows[0].Amount != 2 {
		t.Fatalf("rows=%+v", svc.importRows)
	}
}

func TestImportReportsPartialProgress(t *testing.T) {
	svc := &fakeCommands{
		importRes: services.ImportResult{Imported: []core.Expense{{ID: 1, Description: "Milk"}}},
		importErr: fmt.Errorf("import row 2: %w", services.ErrEmptyDescription),
	}
	srv := newTestServer(t, svc, Options{})

	rr := do(srv, http.MethodPost, "/expenses/import",
		`{"rows":[{"date":"2024-01-01","description":"Milk","amount":2},{"date":"2024-01-02","description":"","amount":3}]}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp importResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Imported != 1 || resp.Error == nil || !strings.Contains(resp.Error.Message, "row 2") {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestImportReportsProgressOnUpstreamFailure(t *testing.T) {
	svc := &fakeCommands{
		importRes: services.ImportResult{Imported: []core.Expense{
			{ID: 1, Description: "Milk"}, {ID: 2, Description: "Bread"},
		}},
		importErr: fmt.Errorf("import row 3: %w", errors.New("openai: 502 bad gateway")),
	}
	srv := newTestServer(t, svc, Options{})

	rr := do(srv, http.MethodPost, "/expenses/import",
		`{"rows":[{"date":"2024-01-01","description":"Milk","amount":2},{"date":"2024-01-01","description":"Bread","amount":3},{"date":"2024-01-01","description":"Eggs","amount":4}]}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp importResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Imported != 2 || len(resp.Expenses) != 2 {
		t.Fatalf("resp=%+v", resp)
	}
	if resp.Error == nil || resp.Error.Message != internalErrorDetail {
		t.Fatalf("error=%+v", resp.Error)
	}
}

func TestImportRequiresRows(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{}, Options{})
	rr := do(srv, http.MethodPost, "/expenses/import", `{"rows":[]}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestCategorize(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{category: core.Transport}, Options{})
	rr := do(srv, http.MethodPost, "/categorize", `{"description":"uber to airport"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"category":"Transport"`) {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestCategorizeWithoutCredential(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{catErr: gateway.ErrMissingCredential}, Options{})
	rr := do(srv, http.MethodPost, "/categorize", `{"description":"x"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestSummary(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{summary: core.Summary{"Food": 15, "Transport": 30}}, Options{})
	rr := do(srv, http.MethodGet, "/summary", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp summaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 45 || len(resp.Categories) != 2 || resp.Categories[0].Name != "Transport" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestTips(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{tips: "1. Cook at home."}, Options{})
	rr := do(srv, http.MethodGet, "/tips", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Cook at home") {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	srv = newTestServer(t, &fakeCommands{tipsErr: services.ErrNoExpenses}, Options{})
	if rr := do(srv, http.MethodGet, "/tips", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("no expenses status=%d", rr.Code)
	}
}

func TestModelEndpointsAreRateLimited(t *testing.T) {
	svc := &fakeCommands{category: core.Food}
	srv := newTestServer(t, svc, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rr := do(srv, http.MethodPost, "/categorize", `{"description":"x"}`); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := do(srv, http.MethodPost, "/categorize", `{"description":"x"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if svc.catCalls != 2 {
		t.Fatalf("categorize calls=%d", svc.catCalls)
	}

	// Plain CRUD shares no budget with the model endpoints.
	if rr := do(srv, http.MethodGet, "/expenses", ""); rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{}, Options{})
	if rr := do(srv, http.MethodPut, "/expenses", `{}`); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rr.Code)
	}
}
