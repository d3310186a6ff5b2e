package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"tuitiondesk/backend/internal/fee"
	"tuitiondesk/backend/internal/shared"
)

func TestGateway_Fees(t *testing.T) {
	env := setupGatewayTestEnv(t)
	tn := env.seedTenant(t, "Alpha Academy", 2)
	payer, other := tn.Students[0], tn.Students[1]

	code, resp := env.do(t, http.MethodPost, "/api/fees/structure", tn.AdminToken, map[string]interface{}{
		"batchId": tn.BatchID, "monthlyFee": 500, "academicMonths": []string{"June", "July"},
	})
	require.Equal(t, http.StatusCreated, code, "%v", resp)
	assert.EqualValues(t, 2, resp["ledgersUpdated"])

	t.Run("Ledger initialized", func(t *testing.T) {
		code, resp := env.do(t, http.MethodGet, "/api/fees/my-fees", payer.Token, nil)
		require.Equal(t, http.StatusOK, code, "%v", resp)
		fees := resp["fees"].(map[string]interface{})
		assert.EqualValues(t, 1000, fees["totalFee"])
		assert.EqualValues(t, 0, fees["paidFee"])
		assert.EqualValues(t, 1000, fees["remainingFee"])
	})

	t.Run("Cannot pay for others", func(t *testing.T) {
		code, resp := env.do(t, http.MethodPost, "/api/fees/pay", payer.Token, map[string]interface{}{
			"studentId": other.ID, "monthsToPay": []string{"June"}, "paymentMethod": "UPI",
		})
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, fee.MsgPayOthers, resp["msg"])
	})

	t.Run("Pay one month", func(t *testing.T) {
		code, resp := env.do(t, http.MethodPost, "/api/fees/pay", payer.Token, map[string]interface{}{
			"monthsToPay": []string{"June"}, "paymentMethod": "UPI", "amount": 1,
		})
		require.Equal(t, http.StatusOK, code, "%v", resp)
		receipt := resp["receipt"].(map[string]interface{})
		assert.EqualValues(t, 500, receipt["amountPaid"])
		assert.Equal(t, payer.RegisterNumber, receipt["registerNumber"])
		assert.Equal(t, "Alpha Academy", receipt["institution"])
		assert.Equal(t, []interface{}{"June"}, receipt["monthsPaid"])

		code, resp = env.do(t, http.MethodGet, "/api/fees/my-fees", payer.Token, nil)
		require.Equal(t, http.StatusOK, code)
		fees := resp["fees"].(map[string]interface{})
		assert.EqualValues(t, 500, fees["paidFee"])
		assert.EqualValues(t, 500, fees["remainingFee"])
	})

	t.Run("Paying a paid month is rejected", func(t *testing.T) {
		code, resp := env.do(t, http.MethodPost, "/api/fees/pay", payer.Token, map[string]interface{}{
			"monthsToPay": []string{"June"}, "paymentMethod": "UPI",
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, fee.MsgNothingToPay, resp["msg"])
	})

	t.Run("Re-setting the structure keeps payments", func(t *testing.T) {
		code, resp := env.do(t, http.MethodPost, "/api/fees/structure", tn.AdminToken, map[string]interface{}{
			"batchId": tn.BatchID, "monthlyFee": 600, "academicMonths": []string{"June", "July", "August"},
		})
		require.Equal(t, http.StatusCreated, code, "%v", resp)
		assert.EqualValues(t, 2, resp["feeStructure"].(map[string]interface{})["version"])

		code, resp = env.do(t, http.MethodGet, "/api/fees/students/"+payer.ID, tn.AdminToken, nil)
		require.Equal(t, http.StatusOK, code, "%v", resp)
		fees := resp["fees"].(map[string]interface{})
		assert.EqualValues(t, 1700, fees["totalFee"])
		assert.EqualValues(t, 500, fees["paidFee"])
		assert.EqualValues(t, 1200, fees["remainingFee"])
	})

	t.Run("Admin pays on behalf of a student", func(t *testing.T) {
		code, resp := env.do(t, http.MethodPost, "/api/fees/pay", tn.AdminToken, map[string]interface{}{
			"studentId": other.ID, "monthsToPay": []string{"June", "July"}, "paymentMethod": "Cash",
		})
		require.Equal(t, http.StatusOK, code, "%v", resp)
		assert.EqualValues(t, 1200, resp["receipt"].(map[string]interface{})["amountPaid"])
	})

	t.Run("Stats and transactions", func(t *testing.T) {
		code, resp := env.do(t, http.MethodGet, "/api/fees/admin/stats?batchId="+tn.BatchID, tn.AdminToken, nil)
		require.Equal(t, http.StatusOK, code, "%v", resp)
		assert.EqualValues(t, 3500, resp["totalExpected"])
		assert.EqualValues(t, 1700, resp["totalCollected"])
		assert.EqualValues(t, 1800, resp["totalPending"])
		assert.Len(t, resp["unpaidStudents"], 2)

		code, resp = env.do(t, http.MethodGet, "/api/fees/transactions", payer.Token, nil)
		require.Equal(t, http.StatusOK, code, "%v", resp)
		assert.Len(t, resp["transactions"], 1)

		code, _ = env.do(t, http.MethodGet, "/api/fees/admin/stats", tn.TeacherToken, nil)
		assert.Equal(t, http.StatusForbidden, code)
	})
}

func TestGateway_ConcurrentPaymentsForSameMonth(t *testing.T) {
	env := setupGatewayTestEnv(t)
	tn := env.seedTenant(t, "Alpha Academy", 1)
	payer := tn.Students[0]

	code, resp := env.do(t, http.MethodPost, "/api/fees/structure", tn.AdminToken, map[string]interface{}{
		"batchId": tn.BatchID, "monthlyFee": 500, "academicMonths": []string{"June", "July"},
	})
	require.Equal(t, http.StatusCreated, code, "%v", resp)

	body, err := json.Marshal(map[string]interface{}{"monthsToPay": []string{"June"}, "paymentMethod": "UPI"})
	require.NoError(t, err)

	const attempts = 8
	codes := make([]int, attempts)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/fees/pay", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+payer.Token)
			rr := httptest.NewRecorder()
			<-start
			env.Router.ServeHTTP(rr, req)
			codes[i] = rr.Code
		}(i)
	}
	close(start)
	wg.Wait()

	ok := 0
	for _, c := range codes {
		if c == http.StatusOK {
			ok++
			continue
		}
		assert.Contains(t, []int{http.StatusBadRequest, http.StatusConflict}, c)
	}
	assert.Equal(t, 1, ok, "codes: %v", codes)

	n, err := env.DB.Collection(shared.ColFeeTransactions).CountDocuments(context.Background(), bson.M{"student_id": payer.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	code, resp = env.do(t, http.MethodGet, "/api/fees/my-fees", payer.Token, nil)
	require.Equal(t, http.StatusOK, code, "%v", resp)
	fees := resp["fees"].(map[string]interface{})
	assert.EqualValues(t, 500, fees["paidFee"])
	assert.EqualValues(t, 500, fees["remainingFee"])
}

func TestGateway_LateBatchMemberGetsLedger(t *testing.T) {
	env := setupGatewayTestEnv(t)
	tn := env.seedTenant(t, "Alpha Academy", 1)

	code, resp := env.do(t, http.MethodPost, "/api/fees/structure", tn.AdminToken, map[string]interface{}{
		"batchId": tn.BatchID, "monthlyFee": 400, "academicMonths": []string{"June", "July"},
	})
	require.Equal(t, http.StatusCreated, code, "%v", resp)

	late := env.registerStudent(t, tn.InstitutionID, "Late", "Joiner")
	code, resp = env.do(t, http.MethodPut, "/api/students/approve/"+late.ID, tn.AdminToken, nil)
	require.Equal(t, http.StatusOK, code, "%v", resp)
	token := env.login(t, "/api/students/login", map[string]string{
		"registerNumber": late.RegisterNumber, "password": late.password,
	})

	code, resp = env.do(t, http.MethodPut, "/api/batches/"+tn.BatchID, tn.AdminToken, map[string]interface{}{
		"studentIds": []string{late.ID},
	})
	require.Equal(t, http.StatusOK, code, "%v", resp)

	code, resp = env.do(t, http.MethodGet, "/api/fees/my-fees", token, nil)
	require.Equal(t, http.StatusOK, code, "%v", resp)
	fees := resp["fees"].(map[string]interface{})
	assert.EqualValues(t, 800, fees["totalFee"])
	assert.EqualValues(t, 800, fees["remainingFee"])

	code, resp = env.do(t, http.MethodPost, "/api/fees/pay", token, map[string]interface{}{
		"monthsToPay": []string{"June"}, "paymentMethod": "Cash",
	})
	require.Equal(t, http.StatusOK, code, "%v", resp)

	t.Run("Re-adding keeps the payment", func(t *testing.T) {
		code, resp := env.do(t, http.MethodPut, "/api/batches/"+tn.BatchID, tn.AdminToken, map[string]interface{}{
			"studentIds": []string{late.ID},
		})
		require.Equal(t, http.StatusOK, code, "%v", resp)

		code, resp = env.do(t, http.MethodGet, "/api/fees/my-fees", token, nil)
		require.Equal(t, http.StatusOK, code, "%v", resp)
		assert.EqualValues(t, 400, resp["fees"].(map[string]interface{})["paidFee"])
	})

	t.Run("Stats include the new member", func(t *testing.T) {
		code, resp := env.do(t, http.MethodGet, "/api/fees/admin/stats?batchId="+tn.BatchID, tn.AdminToken, nil)
		require.Equal(t, http.StatusOK, code, "%v", resp)
		assert.EqualValues(t, 1600, resp["totalExpected"])
		assert.EqualValues(t, 400, resp["totalCollected"])
		assert.EqualValues(t, 1200, resp["totalPending"])
	})
}
