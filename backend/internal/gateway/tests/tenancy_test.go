package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway_TenantIsolation(t *testing.T) {
	env := setupGatewayTestEnv(t)
	alpha := env.seedTenant(t, "Alpha Academy", 1)
	beta := env.seedTenant(t, "Beta Institute", 1)

	t.Run("Register numbers use the institution prefix", func(t *testing.T) {
		assert.Regexp(t, `^ALP\d{2,}$`, alpha.Students[0].RegisterNumber)
		assert.Regexp(t, `^BET\d{2,}$`, beta.Students[0].RegisterNumber)
	})

	t.Run("Foreign batch is forbidden", func(t *testing.T) {
		code, _ := env.do(t, http.MethodGet, "/api/attendance/batch/"+alpha.BatchID, beta.TeacherToken, nil)
		assert.Equal(t, http.StatusForbidden, code)

		code, _ = env.do(t, http.MethodPost, "/api/fees/structure", beta.AdminToken, map[string]interface{}{
			"batchId": alpha.BatchID, "monthlyFee": 100, "academicMonths": []string{"June"},
		})
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("Foreign student cannot be approved", func(t *testing.T) {
		reg := env.registerStudent(t, alpha.InstitutionID, "Late", "Joiner")
		code, _ := env.do(t, http.MethodPut, "/api/students/approve/"+reg.ID, beta.AdminToken, nil)
		assert.Equal(t, http.StatusForbidden, code)

		code, resp := env.do(t, http.MethodGet, "/api/students/pending", beta.AdminToken, nil)
		require.Equal(t, http.StatusOK, code)
		assert.Empty(t, resp["students"])
	})

	t.Run("Batches are listed per institution", func(t *testing.T) {
		code, resp := env.do(t, http.MethodGet, "/api/batches", beta.AdminToken, nil)
		require.Equal(t, http.StatusOK, code, "%v", resp)
		batches := resp["batches"].([]interface{})
		require.Len(t, batches, 1)
		assert.Equal(t, beta.BatchID, batches[0].(map[string]interface{})["id"])
	})

	t.Run("Expenses are listed per institution", func(t *testing.T) {
		code, resp := env.do(t, http.MethodPost, "/api/expenses", alpha.OwnerToken, map[string]interface{}{
			"title": "Whiteboard markers", "amount": 250, "date": "2026-06-02",
		})
		require.Equal(t, http.StatusCreated, code, "%v", resp)
		assert.Equal(t, "Other", resp["expense"].(map[string]interface{})["category"])

		code, resp = env.do(t, http.MethodGet, "/api/expenses", alpha.AdminToken, nil)
		require.Equal(t, http.StatusOK, code)
		assert.EqualValues(t, 250, resp["totalExpense"])

		code, resp = env.do(t, http.MethodGet, "/api/expenses", beta.AdminToken, nil)
		require.Equal(t, http.StatusOK, code)
		assert.Empty(t, resp["expenses"])
		assert.EqualValues(t, 0, resp["totalExpense"])

		code, _ = env.do(t, http.MethodGet, "/api/expenses", alpha.TeacherToken, nil)
		assert.Equal(t, http.StatusForbidden, code)
	})
}

func TestGateway_SharedRegisterPrefix(t *testing.T) {
	env := setupGatewayTestEnv(t)

	newInstitution := func(name string) string {
		code, resp := env.do(t, http.MethodPost, "/api/institutions", "", map[string]string{"name": name, "location": "Kochi"})
		require.Equal(t, http.StatusCreated, code, "%v", resp)
		return resp["institution"].(map[string]interface{})["id"].(string)
	}
	alpha := newInstitution("Alpha Academy")
	alpine := newInstitution("Alpine School")

	first := env.registerStudent(t, alpha, "Asha", "Menon")
	second := env.registerStudent(t, alpine, "Arun", "Nair")

	assert.Equal(t, "ALP01", first.RegisterNumber)
	assert.Equal(t, "ALP02", second.RegisterNumber)

	third := env.registerStudent(t, alpha, "Anu", "Pillai")
	assert.Equal(t, "ALP03", third.RegisterNumber)
}
