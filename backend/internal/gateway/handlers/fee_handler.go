package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tuitiondesk/backend/internal/fee"
	"tuitiondesk/backend/internal/gateway/util"
)

// FeeHandler serves fee structures, ledgers and payments
type FeeHandler struct {
	Fees *fee.FeeService
}

// RESTFeeStructureRequest mirrors the JSON input for POST /fees/structure
type RESTFeeStructureRequest struct {
	BatchID        string   `json:"batchId" validate:"required"`
	MonthlyFee     *float64 `json:"monthlyFee" validate:"required,gte=0"`
	AcademicMonths []string `json:"academicMonths" validate:"required,min=1"`
	Description    string   `json:"description"`
}

// RESTPayRequest mirrors the JSON input for POST /fees/pay. A client supplied
// amount is accepted but ignored.
type RESTPayRequest struct {
	StudentID     string   `json:"studentId"`
	MonthsToPay   []string `json:"monthsToPay" validate:"required,min=1"`
	PaymentMethod string   `json:"paymentMethod" validate:"required"`
	Amount        float64  `json:"amount"`
}

// SetStructure handles POST /fees/structure
func (h *FeeHandler) SetStructure(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	var reqBody RESTFeeStructureRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}

	res, err := h.Fees.SetStructure(r.Context(), caller, fee.StructureInput{
		BatchID:        reqBody.BatchID,
		MonthlyFee:     *reqBody.MonthlyFee,
		AcademicMonths: reqBody.AcademicMonths,
		Description:    reqBody.Description,
	})
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success":        true,
		"msg":            "Fee structure set and students updated",
		"feeStructure":   res.Structure,
		"ledgersUpdated": res.LedgersUpdated,
	})
}

// MyFees handles GET /fees/my-fees
func (h *FeeHandler) MyFees(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	ledger, err := h.Fees.MyFees(r.Context(), caller)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"fees":    ledger,
	})
}

// StudentLedger handles GET /fees/students/{studentId}
func (h *FeeHandler) StudentLedger(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	ledger, err := h.Fees.StudentLedger(r.Context(), caller, chi.URLParam(r, "studentId"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"fees":    ledger,
	})
}

// Pay handles POST /fees/pay
func (h *FeeHandler) Pay(w http.ResponseWriter, r *http.Request) {
	// 1. Authorization
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	// 2. Decode
	var reqBody RESTPayRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}

	// 3. Pay
	receipt, err := h.Fees.Pay(r.Context(), caller, fee.PayInput{
		StudentID:     reqBody.StudentID,
		MonthsToPay:   reqBody.MonthsToPay,
		PaymentMethod: reqBody.PaymentMethod,
	})
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"msg":     "Payment successful",
		"receipt": receipt,
	})
}

// Stats handles GET /fees/admin/stats?batchId=
func (h *FeeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	stats, err := h.Fees.Stats(r.Context(), caller, r.URL.Query().Get("batchId"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"totalExpected":  stats.TotalExpected,
		"totalCollected": stats.TotalCollected,
		"totalPending":   stats.TotalPending,
		"unpaidStudents": stats.UnpaidStudents,
	})
}

// Transactions handles GET /fees/transactions?studentId=
func (h *FeeHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	txns, err := h.Fees.Transactions(r.Context(), caller, r.URL.Query().Get("studentId"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"transactions": txns,
	})
}
