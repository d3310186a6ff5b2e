package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tuitiondesk/backend/internal/exam"
	"tuitiondesk/backend/internal/gateway/util"
	"tuitiondesk/backend/internal/shared"
)

// ExamHandler serves exam blueprints and grading
type ExamHandler struct {
	Exams *exam.ExamService
}

// RESTCreateExamRequest mirrors the JSON input for POST /exams
type RESTCreateExamRequest struct {
	BatchID       string           `json:"batchId" validate:"required"`
	Name          string           `json:"name" validate:"required"`
	ScheduledDate string           `json:"scheduledDate" validate:"required"`
	Duration      string           `json:"duration"`
	Subjects      []shared.Subject `json:"subjects" validate:"required,min=1,dive"`
}

// RESTSubmitMarksRequest mirrors the JSON input for POST /exams/marks
type RESTSubmitMarksRequest struct {
	ExamID       string           `json:"examId" validate:"required"`
	StudentMarks []exam.MarkEntry `json:"studentMarks" validate:"required,min=1"`
}

// Create handles POST /exams
func (h *ExamHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	var reqBody RESTCreateExamRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}

	created, err := h.Exams.Create(r.Context(), caller, exam.CreateInput{
		BatchID:       reqBody.BatchID,
		Name:          reqBody.Name,
		ScheduledDate: reqBody.ScheduledDate,
		Duration:      reqBody.Duration,
		Subjects:      reqBody.Subjects,
	})
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"msg":     "Exam created successfully",
		"exam":    created,
	})
}

// List handles GET /exams?batchId=
func (h *ExamHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	exams, err := h.Exams.List(r.Context(), caller, r.URL.Query().Get("batchId"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"exams":   exams,
	})
}

// GradingSheet handles GET /exams/{examId}/grading-sheet
func (h *ExamHandler) GradingSheet(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	sheet, err := h.Exams.GradingSheet(r.Context(), caller, chi.URLParam(r, "examId"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"examDetails":     sheet.ExamDetails,
		"students":        sheet.Students,
		"existingResults": sheet.ExistingResults,
	})
}

// SubmitMarks handles POST /exams/marks
func (h *ExamHandler) SubmitMarks(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	var reqBody RESTSubmitMarksRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}

	results, err := h.Exams.SubmitMarks(r.Context(), caller, reqBody.ExamID, reqBody.StudentMarks)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"msg":     "Marks submitted successfully",
		"results": results,
	})
}

// MyResults handles GET /exams/results/me
func (h *ExamHandler) MyResults(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	results, err := h.Exams.MyResults(r.Context(), caller)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"results": results,
	})
}
