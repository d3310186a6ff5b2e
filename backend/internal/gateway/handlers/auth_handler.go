package handlers

import (
	"net/http"
	"strings"

	"tuitiondesk/backend/internal/auth"
	"tuitiondesk/backend/internal/gateway/util"
	"tuitiondesk/backend/internal/identity"
)

// AuthHandler serves login, logout and the current account
type AuthHandler struct {
	Auth *auth.AuthService
}

// RESTLoginRequest mirrors the JSON input of every login route. Staff log in
// with an email, students with a register number; identifier accepts either.
type RESTLoginRequest struct {
	Identifier     string `json:"identifier"`
	Email          string `json:"email"`
	RegisterNumber string `json:"registerNumber"`
	Password       string `json:"password" validate:"required"`
	Role           string `json:"role"`
}

func (req RESTLoginRequest) identifier() string {
	for _, v := range []string{req.Identifier, req.Email, req.RegisterNumber} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// RESTChangePasswordRequest mirrors the JSON input for /auth/change-password
type RESTChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// currentPrincipal returns the authenticated caller or writes a 401
func currentPrincipal(w http.ResponseWriter, r *http.Request) (*identity.Principal, bool) {
	p, ok := identity.FromContext(r.Context())
	if !ok {
		util.WriteJSONError(w, http.StatusUnauthorized, "No token, authorization denied")
		return nil, false
	}
	return p, true
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, "")
}

// RoleLogin serves the per-role login routes (/owners/login, /students/login, ...)
func (h *AuthHandler) RoleLogin(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.login(w, r, role)
	}
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, role string) {
	// 1. Decode and validate
	var reqBody RESTLoginRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}
	identifier := reqBody.identifier()
	if identifier == "" {
		util.WriteJSONError(w, http.StatusBadRequest, "Please enter all fields")
		return
	}
	if role == "" {
		role = reqBody.Role
	}

	// 2. Authenticate
	result, err := h.Auth.Login(r.Context(), auth.LoginRequest{
		Identifier: identifier,
		Password:   reqBody.Password,
		Role:       role,
		IPAddress:  r.RemoteAddr,
	})
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	// 3. Respond
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user":      result.User,
	})
}

// Logout handles POST /auth/logout. It succeeds even without a token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := util.ExtractToken(r)
	if err == nil {
		if err := h.Auth.Logout(r.Context(), token); err != nil {
			util.HandleServiceError(w, err)
			return
		}
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"msg":     "Logged out successfully",
	})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	user, err := h.Auth.CurrentUser(r.Context(), caller.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

// ChangePassword handles POST /auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	// 1. Authentication
	caller, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	// 2. Decode Request Body
	var reqBody RESTChangePasswordRequest
	if !util.DecodeJSON(w, r, &reqBody) {
		return
	}
	if reqBody.OldPassword == reqBody.NewPassword {
		util.WriteJSONError(w, http.StatusBadRequest, "New password cannot be the same as the old password")
		return
	}

	// 3. Change and revoke sessions
	if err := h.Auth.ChangePassword(r.Context(), caller.ID, reqBody.OldPassword, reqBody.NewPassword); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"msg":     "Password changed. Please log in again.",
	})
}
