package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuitiondesk/backend/internal/auth"
)

func TestGateway_Auth(t *testing.T) {
	env := setupGatewayTestEnv(t)
	tn := env.seedTenant(t, "Alpha Academy", 0)

	t.Run("Unapproved student is refused", func(t *testing.T) {
		reg := env.registerStudent(t, tn.InstitutionID, "Pending", "Kid")

		code, resp := env.do(t, http.MethodPost, "/api/students/login", "", map[string]string{
			"registerNumber": reg.RegisterNumber, "password": reg.password,
		})
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, false, resp["success"])
		assert.Equal(t, auth.MsgAwaitingApproval, resp["msg"])
	})

	t.Run("Wrong password", func(t *testing.T) {
		code, resp := env.do(t, http.MethodPost, "/api/admins/login", "", map[string]string{
			"email": "admin@alphaacademy.test", "password": "nope",
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, auth.MsgInvalidCredentials, resp["msg"])
	})

	t.Run("Role login does not cross roles", func(t *testing.T) {
		code, _ := env.do(t, http.MethodPost, "/api/teachers/login", "", map[string]string{
			"email": "admin@alphaacademy.test", "password": "password",
		})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("Missing token", func(t *testing.T) {
		code, resp := env.do(t, http.MethodGet, "/api/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "No token, authorization denied", resp["msg"])
	})

	t.Run("Me then logout", func(t *testing.T) {
		token := env.login(t, "/api/auth/login", map[string]string{
			"identifier": "teacher@alphaacademy.test", "password": "password",
		})

		code, resp := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
		require.Equal(t, http.StatusOK, code, "%v", resp)
		user := resp["user"].(map[string]interface{})
		assert.Equal(t, "teacher", user["role"])
		assert.Equal(t, tn.InstitutionID, user["institutionId"])
		assert.NotContains(t, user, "password_hash")

		code, _ = env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
		require.Equal(t, http.StatusOK, code)

		code, resp = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, auth.MsgTokenFailed, resp["msg"])
	})

	t.Run("Change password revokes sessions", func(t *testing.T) {
		token := env.login(t, "/api/auth/login", map[string]string{
			"identifier": "owner@alphaacademy.test", "password": "password",
		})

		code, resp := env.do(t, http.MethodPost, "/api/auth/change-password", token, map[string]string{
			"oldPassword": "password", "newPassword": "new-secret",
		})
		require.Equal(t, http.StatusOK, code, "%v", resp)

		code, _ = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, code)

		env.login(t, "/api/owners/login", map[string]string{"email": "owner@alphaacademy.test", "password": "new-secret"})
	})
}
