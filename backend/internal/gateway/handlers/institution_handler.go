package handlers

import (
	"net/http"

	"tuitiondesk/backend/internal/gateway/util"
	"tuitiondesk/backend/internal/institution"
	"tuitiondesk/backend/internal/shared"
)

// InstitutionHandler serves institutions and staff accounts
type InstitutionHandler struct {
	Institutions *institution.InstitutionService
}

// RESTInstitutionRequest mirrors the JSON input for POST /institutions
type RESTInstitutionRequest struct {
	Name     string `json:"name" validate:"required"`
	Location string `json:"location"`
}

// RESTStaffRequest mirrors the JSON input for owner, admin and teacher creation
type RESTStaffRequest struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=6"`
	InstitutionID string `json:"institutionId"`
}

func (req RESTStaffRequest) input() institution.StaffInput {
	return institution.StaffInput{
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		InstitutionID: req.InstitutionID,
	}
}

// CreateInstitution handles POST /institutions
func (h *InstitutionHandler) CreateInstitution(w http.ResponseWriter, r *http.Request) {
	var reqBody RESTInstitutionRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}

	inst, err := h.Institutions.RegisterInstitution(r.Context(), reqBody.Name, reqBody.Location)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success":     true,
		"msg":         "Institution registered",
		"institution": inst,
	})
}

// ListInstitutions handles GET /institutions and GET /students/institutions
func (h *InstitutionHandler) ListInstitutions(w http.ResponseWriter, r *http.Request) {
	institutions, err := h.Institutions.ListInstitutions(r.Context())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"institutions": institutions,
	})
}

// RegisterOwner handles POST /owners
func (h *InstitutionHandler) RegisterOwner(w http.ResponseWriter, r *http.Request) {
	var reqBody RESTStaffRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}
	if reqBody.InstitutionID == "" {
		util.WriteJSONError(w, http.StatusBadRequest, "institutionId is required")
		return
	}

	owner, err := h.Institutions.RegisterOwner(r.Context(), reqBody.input())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"msg":     "Owner registered",
		"owner":   owner,
	})
}

// CreateAdmin handles POST /admins (owner only)
func (h *InstitutionHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	h.createStaff(w, r, shared.RoleAdmin)
}

// CreateTeacher handles POST /teachers
func (h *InstitutionHandler) CreateTeacher(w http.ResponseWriter, r *http.Request) {
	h.createStaff(w, r, shared.RoleTeacher)
}

func (h *InstitutionHandler) createStaff(w http.ResponseWriter, r *http.Request, role string) {
	// 1. Authorization
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	// 2. Decode
	var reqBody RESTStaffRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}

	// 3. Create
	var (
		user *shared.User
		err  error
	)
	if role == shared.RoleAdmin {
		user, err = h.Institutions.CreateAdmin(r.Context(), caller, reqBody.input())
	} else {
		user, err = h.Institutions.CreateTeacher(r.Context(), caller, reqBody.input())
	}
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"msg":     role + " created",
		role:      user,
	})
}

// ListAdmins handles GET /admins
func (h *InstitutionHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	h.listStaff(w, r, shared.RoleAdmin, "admins")
}

// ListTeachers handles GET /teachers
func (h *InstitutionHandler) ListTeachers(w http.ResponseWriter, r *http.Request) {
	h.listStaff(w, r, shared.RoleTeacher, "teachers")
}

func (h *InstitutionHandler) listStaff(w http.ResponseWriter, r *http.Request, role, key string) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	staff, err := h.Institutions.ListStaff(r.Context(), caller, role)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		key:       staff,
	})
}
