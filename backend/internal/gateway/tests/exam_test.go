package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuitiondesk/backend/internal/shared"
)

func TestGateway_Exams(t *testing.T) {
	env := setupGatewayTestEnv(t)
	tn := env.seedTenant(t, "Alpha Academy", 2)
	first, second := tn.Students[0], tn.Students[1]

	code, resp := env.do(t, http.MethodPost, "/api/exams", tn.TeacherToken, map[string]interface{}{
		"batchId":       tn.BatchID,
		"name":          "Unit Test 1",
		"scheduledDate": "2026-07-10",
		"duration":      "2h",
		"subjects": []map[string]interface{}{
			{"name": "Math", "maxMarks": 100, "passMarks": 35},
			{"name": "Science", "maxMarks": 100, "passMarks": 35},
		},
	})
	require.Equal(t, http.StatusCreated, code, "%v", resp)
	examID := resp["exam"].(map[string]interface{})["id"].(string)

	submit := func(t *testing.T, entries ...map[string]interface{}) []interface{} {
		t.Helper()
		code, resp := env.do(t, http.MethodPost, "/api/exams/marks", tn.TeacherToken, map[string]interface{}{
			"examId": examID, "studentMarks": entries,
		})
		require.Equal(t, http.StatusOK, code, "%v", resp)
		return resp["results"].([]interface{})
	}

	t.Run("One failed subject fails the exam", func(t *testing.T) {
		results := submit(t,
			map[string]interface{}{"studentId": first.ID, "obtainedMarks": map[string]float64{"Math": 30, "Science": 90}},
			map[string]interface{}{"studentId": second.ID, "isAbsent": true},
		)
		require.Len(t, results, 2)

		r := results[0].(map[string]interface{})
		assert.Equal(t, shared.ResultFailed, r["resultStatus"])
		assert.EqualValues(t, 120, r["totalObtainedMarks"])
		assert.EqualValues(t, 200, r["totalMaxMarks"])
		assert.EqualValues(t, 60, r["percentage"])

		assert.Equal(t, shared.ResultAbsent, results[1].(map[string]interface{})["resultStatus"])
	})

	t.Run("Resubmission replaces the result", func(t *testing.T) {
		results := submit(t,
			map[string]interface{}{"studentId": first.ID, "obtainedMarks": map[string]float64{"Math": 40, "Science": 90}},
		)
		assert.Equal(t, shared.ResultPassed, results[0].(map[string]interface{})["resultStatus"])

		code, resp := env.do(t, http.MethodGet, "/api/exams/"+examID+"/grading-sheet", tn.AdminToken, nil)
		require.Equal(t, http.StatusOK, code, "%v", resp)
		assert.Len(t, resp["students"], 2)
		assert.Len(t, resp["existingResults"], 2)
	})

	t.Run("Marks for a student outside the batch", func(t *testing.T) {
		code, _ := env.do(t, http.MethodPost, "/api/exams/marks", tn.TeacherToken, map[string]interface{}{
			"examId":       examID,
			"studentMarks": []map[string]interface{}{{"studentId": "stu_outsider", "isAbsent": true}},
		})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("Student reads own results", func(t *testing.T) {
		code, resp := env.do(t, http.MethodGet, "/api/exams/results/me", first.Token, nil)
		require.Equal(t, http.StatusOK, code, "%v", resp)
		results := resp["results"].([]interface{})
		require.Len(t, results, 1)
		r := results[0].(map[string]interface{})
		assert.Equal(t, "Unit Test 1", r["examName"])
		assert.EqualValues(t, 65, r["percentage"])
	})

	t.Run("Students cannot grade", func(t *testing.T) {
		code, _ := env.do(t, http.MethodPost, "/api/exams/marks", first.Token, map[string]interface{}{
			"examId":       examID,
			"studentMarks": []map[string]interface{}{{"studentId": first.ID, "obtainedMarks": map[string]float64{"Math": 100}}},
		})
		assert.Equal(t, http.StatusForbidden, code)
	})
}
