package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tuitiondesk/backend/internal/batch"
	"tuitiondesk/backend/internal/fee"
	"tuitiondesk/backend/internal/gateway/util"
	"tuitiondesk/backend/internal/student"
)

// BatchHandler serves batch management
type BatchHandler struct {
	Batches  *batch.BatchService
	Students *student.StudentService
	Fees     *fee.FeeService
}

// RESTBatchRequest mirrors the JSON input for POST /batches
type RESTBatchRequest struct {
	Name       string   `json:"name"`
	ClassName  string   `json:"className"`
	StudentIDs []string `json:"studentIds"`
}

// RESTBatchUpdateRequest mirrors the JSON input for PUT /batches/{id}
type RESTBatchUpdateRequest struct {
	Name       string   `json:"name"`
	StudentIDs []string `json:"studentIds"`
}

// StudentsByClass handles GET /batches/students?className=
func (h *BatchHandler) StudentsByClass(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	students, err := h.Students.StudentsByClass(r.Context(), caller, r.URL.Query().Get("className"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"students": students,
	})
}

// Create handles POST /batches
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	var reqBody RESTBatchRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}

	b, err := h.Batches.Create(r.Context(), caller, batch.CreateInput{
		Name:       reqBody.Name,
		ClassName:  reqBody.ClassName,
		StudentIDs: reqBody.StudentIDs,
	})
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"msg":     "Batch created successfully",
		"batch":   b,
	})
}

// Update handles PUT /batches/{id}
func (h *BatchHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	var reqBody RESTBatchUpdateRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}

	b, err := h.Batches.Update(r.Context(), caller, chi.URLParam(r, "id"), reqBody.Name, reqBody.StudentIDs)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	// New members join the current fee plan. Re-sending the same students is safe.
	if _, err := h.Fees.EnrollMembers(r.Context(), caller, b.ID, batch.Dedupe(reqBody.StudentIDs)); err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"msg":     "Batch updated successfully",
		"batch":   b,
	})
}

// List handles GET /batches
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	batches, err := h.Batches.List(r.Context(), caller)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"batches": batches,
	})
}
