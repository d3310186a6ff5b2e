package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tuitiondesk/backend/internal/attendance"
	"tuitiondesk/backend/internal/gateway/util"
)

// AttendanceHandler serves attendance marking and reports
type AttendanceHandler struct {
	Attendance *attendance.AttendanceService
}

// RESTMarkAttendanceRequest mirrors the JSON input for POST /attendance
type RESTMarkAttendanceRequest struct {
	BatchID          string   `json:"batchId" validate:"required"`
	Date             string   `json:"date" validate:"required"`
	StartTime        string   `json:"startTime"`
	EndTime          string   `json:"endTime"`
	Session          string   `json:"session" validate:"required"`
	AbsentStudentIDs []string `json:"absentStudentIds"`
}

// RESTUpdateAttendanceRequest mirrors the JSON input for PUT /attendance/{id}
type RESTUpdateAttendanceRequest struct {
	AbsentStudentIDs []string `json:"absentStudentIds"`
}

// BatchStudents handles GET /attendance/batch/{batchId}
func (h *AttendanceHandler) BatchStudents(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	roster, err := h.Attendance.BatchStudents(r.Context(), caller, chi.URLParam(r, "batchId"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"batchName": roster.BatchName,
		"className": roster.ClassName,
		"students":  roster.Students,
	})
}

// Mark handles POST /attendance
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	// 1. Authorization
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	// 2. Decode
	var reqBody RESTMarkAttendanceRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}

	// 3. Record
	res, err := h.Attendance.Mark(r.Context(), caller, attendance.MarkInput{
		BatchID:          reqBody.BatchID,
		Date:             reqBody.Date,
		StartTime:        reqBody.StartTime,
		EndTime:          reqBody.EndTime,
		Session:          reqBody.Session,
		AbsentStudentIDs: reqBody.AbsentStudentIDs,
	})
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	// 4. Respond with the tally and both lists
	util.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success":         true,
		"msg":             "Attendance marked successfully",
		"attendanceId":    res.Record.ID,
		"metrics":         res.Record.Metrics,
		"presentStudents": res.Present,
		"absentStudents":  res.Absent,
	})
}

// Update handles PUT /attendance/{id}
func (h *AttendanceHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	var reqBody RESTUpdateAttendanceRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}

	record, err := h.Attendance.Update(r.Context(), caller, chi.URLParam(r, "id"), reqBody.AbsentStudentIDs)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"msg":     "Attendance updated successfully",
		"metrics": record.Metrics,
	})
}

// View handles GET /attendance?batchId=&date=
func (h *AttendanceHandler) View(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	records, err := h.Attendance.View(r.Context(), caller, q.Get("batchId"), q.Get("date"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"attendance": records,
	})
}

// Mine handles GET /attendance/me
func (h *AttendanceHandler) Mine(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	report, err := h.Attendance.MyAttendance(r.Context(), caller)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"attendance": report,
	})
}
