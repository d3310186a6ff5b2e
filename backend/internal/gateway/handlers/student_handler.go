package handlers

import (
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tuitiondesk/backend/internal/gateway/util"
	"tuitiondesk/backend/internal/student"
)

// photoField is the multipart field carrying the profile photo
const photoField = "profilePhoto"

// StudentHandler serves student registration, approval and profiles
type StudentHandler struct {
	Students *student.StudentService
}

// RESTRegisterStudentRequest mirrors the JSON input for POST /students
type RESTRegisterStudentRequest struct {
	FirstName     string `json:"firstName" validate:"required"`
	LastName      string `json:"lastName" validate:"required"`
	DOB           string `json:"dob" validate:"required"`
	InstitutionID string `json:"institutionId" validate:"required"`
}

// RESTProfileRequest mirrors the profile form; every field is optional
type RESTProfileRequest struct {
	ClassName      string `json:"className"`
	Medium         string `json:"medium"`
	Syllabus       string `json:"syllabus"`
	SchoolName     string `json:"schoolName"`
	FatherName     string `json:"fatherName"`
	MotherName     string `json:"motherName"`
	PhoneNumber    string `json:"phoneNumber"`
	WhatsappNumber string `json:"whatsappNumber"`
	Address        string `json:"address"`
	Password       string `json:"password"`
}

func (req RESTProfileRequest) update() student.ProfileUpdate {
	return student.ProfileUpdate{
		ClassName:      req.ClassName,
		Medium:         req.Medium,
		Syllabus:       req.Syllabus,
		SchoolName:     req.SchoolName,
		FatherName:     req.FatherName,
		MotherName:     req.MotherName,
		PhoneNumber:    req.PhoneNumber,
		WhatsappNumber: req.WhatsappNumber,
		Address:        req.Address,
		Password:       req.Password,
	}
}

// Register handles POST /students (public)
func (h *StudentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var reqBody RESTRegisterStudentRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}

	reg, err := h.Students.Register(r.Context(), student.RegisterInput{
		FirstName:     reqBody.FirstName,
		LastName:      reqBody.LastName,
		DOB:           reqBody.DOB,
		InstitutionID: reqBody.InstitutionID,
	})
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"msg":     "Student registered successfully",
		"data":    reg,
	})
}

// Pending handles GET /students/pending
func (h *StudentHandler) Pending(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	students, err := h.Students.ListPending(r.Context(), caller)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"students": students,
	})
}

// Approve handles PUT /students/approve/{id}
func (h *StudentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	st, err := h.Students.Approve(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"msg":     "Student approved successfully",
		"student": st,
	})
}

// UpdateProfile handles PUT /students/profile. The body is either JSON or a
// multipart form with an optional profilePhoto file.
func (h *StudentHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	// 1. Authorization
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	// 2. Decode either body shape
	var update student.ProfileUpdate
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		form, ok := h.parseProfileForm(w, r)
		if !ok {
			return
		}
		update = form
	} else {
		var reqBody RESTProfileRequest
		if !util.DecodeJSON(w, r, &reqBody) {
			return
		}
		update = reqBody.update()
	}

	// 3. Apply; a stored photo is removed again if the update fails
	st, err := h.Students.UpdateProfile(r.Context(), caller, update)
	if err != nil {
		h.Students.Photos().Remove(update.ProfilePhoto)
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"msg":     "Profile updated successfully",
		"student": st,
	})
}

func (h *StudentHandler) parseProfileForm(w http.ResponseWriter, r *http.Request) (student.ProfileUpdate, bool) {
	photos := h.Students.Photos()
	// Leave headroom for the text fields around the file
	r.Body = http.MaxBytesReader(w, r.Body, photos.MaxBytes()+1<<20)
	if err := r.ParseMultipartForm(photos.MaxBytes()); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			util.WriteJSONError(w, http.StatusBadRequest, "File too large")
			return student.ProfileUpdate{}, false
		}
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid multipart form")
		return student.ProfileUpdate{}, false
	}

	update := RESTProfileRequest{
		ClassName:      r.FormValue("className"),
		Medium:         r.FormValue("medium"),
		Syllabus:       r.FormValue("syllabus"),
		SchoolName:     r.FormValue("schoolName"),
		FatherName:     r.FormValue("fatherName"),
		MotherName:     r.FormValue("motherName"),
		PhoneNumber:    r.FormValue("phoneNumber"),
		WhatsappNumber: r.FormValue("whatsappNumber"),
		Address:        r.FormValue("address"),
		Password:       r.FormValue("password"),
	}.update()

	file, _, err := r.FormFile(photoField)
	if errors.Is(err, http.ErrMissingFile) {
		return update, true
	}
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid photo upload")
		return student.ProfileUpdate{}, false
	}
	defer file.Close()

	path, err := photos.Save(file)
	if err != nil {
		util.HandleServiceError(w, err)
		return student.ProfileUpdate{}, false
	}
	update.ProfilePhoto = path
	return update, true
}
