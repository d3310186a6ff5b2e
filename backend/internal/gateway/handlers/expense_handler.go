package handlers

import (
	"net/http"

	"tuitiondesk/backend/internal/expense"
	"tuitiondesk/backend/internal/gateway/util"
)

// ExpenseHandler serves institution expenditures
type ExpenseHandler struct {
	Expenses *expense.ExpenseService
}

// RESTExpenseRequest mirrors the JSON input for POST /expenses
type RESTExpenseRequest struct {
	Title       string  `json:"title" validate:"required"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
}

// Add handles POST /expenses
func (h *ExpenseHandler) Add(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	var reqBody RESTExpenseRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}

	exp, err := h.Expenses.Add(r.Context(), caller, expense.AddInput{
		Title:       reqBody.Title,
		Amount:      reqBody.Amount,
		Category:    reqBody.Category,
		Description: reqBody.Description,
		Date:        reqBody.Date,
	})
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"msg":     "Expense added",
		"expense": exp,
	})
}

// List handles GET /expenses
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	ledger, err := h.Expenses.List(r.Context(), caller)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"expenses":     ledger.Expenses,
		"totalExpense": ledger.TotalExpense,
	})
}
