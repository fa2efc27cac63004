package http

import (
	"net/http"

	"fintrack/internal/core"
)

type listResponse struct {
	Expenses []core.Expense `json:"expenses"`
	Count    int            `json:"count"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	expenses, err := s.svc.ListExpenses(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, listResponse{Expenses: expenses, Count: len(expenses)})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req addExpenseRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.AddExpense(r.Context(), req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.DeleteExpense(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type importResponse struct {
	Imported int            `json:"imported"`
	Expenses []core.Expense `json:"expenses"`
	Error    *errorDetail   `json:"error,omitempty"`
}

// handleImportExpenses reports the rows stored before a failure alongside
// the error.
func (s *Server) handleImportExpenses(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.ImportExpenses(r.Context(), req.toRows())
	resp := importResponse{Imported: res.Count(), Expenses: res.Imported}
	if resp.Expenses == nil {
		resp.Expenses = []core.Expense{}
	}
	if err != nil {
		status, code, message := errorStatus(err)
		if status >= http.StatusInternalServerError {
			logServerError(r, status, err)
		}
		resp.Error = &errorDetail{Code: code, Message: message}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
