package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"tuitiondesk/backend/internal/gateway"
	"tuitiondesk/backend/internal/shared"
)

// TestEnv holds the router and the database behind it
type TestEnv struct {
	Router   http.Handler
	Services *gateway.Services
	DB       *mongo.Database
}

// setupGatewayTestEnv wires the full API against a throwaway database.
// It skips when no MongoDB is configured.
func setupGatewayTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	// backend/internal/gateway/tests -> backend/.env
	_ = godotenv.Load("../../../.env")

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		t.Skip("MONGO_URI not set, skipping gateway integration test")
	}

	cfg := &shared.ServiceConfig{
		ServiceName: "tuitiondesk-api-test",
		Environment: "test",
		MongoDB: shared.MongoConfig{
			URI:            mongoURI,
			Database:       "tuitiondesk_test_" + uuid.NewString()[:8],
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    10,
			MinPoolSize:    1,
			MaxIdleTime:    60 * time.Second,
		},
		Security: shared.SecurityConfig{JWTSecret: "test-secret", JWTExpirationHours: 1, BCryptCost: 4},
		CORS:     shared.CORSConfig{AllowedOrigins: []string{"*"}},
		Uploads:  shared.UploadConfig{Dir: t.TempDir(), MaxBytes: 2 << 20},
	}

	logger := zap.NewNop()
	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB, logger)
	require.NoError(t, err, "connect to MongoDB")

	ctx := context.Background()
	require.NoError(t, shared.EnsureIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	svc, err := gateway.NewServices(client, db, cfg, logger)
	require.NoError(t, err)

	return &TestEnv{
		Router:   gateway.SetupRoutes(svc, logger),
		Services: svc,
		DB:       db,
	}
}

// do sends a JSON request through the router and decodes the JSON reply
func (e *TestEnv) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	e.Router.ServeHTTP(rr, req)

	resp := map[string]interface{}{}
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), "body: %s", rr.Body.String())
	}
	return rr.Code, resp
}

// tenant is one institution with its staff logged in and a class of approved students
type tenant struct {
	InstitutionID string
	OwnerToken    string
	AdminToken    string
	TeacherToken  string
	Students      []enrolled
	BatchID       string
}

type enrolled struct {
	ID             string
	RegisterNumber string
	Token          string
}

func (e *TestEnv) login(t *testing.T, path string, body map[string]string) string {
	t.Helper()
	code, resp := e.do(t, http.MethodPost, path, "", body)
	require.Equal(t, http.StatusOK, code, "login %s: %v", path, resp)
	token, ok := resp["token"].(string)
	require.True(t, ok, "token missing in %v", resp)
	return token
}

// seedTenant builds an institution through the public API with the given number of students
func (e *TestEnv) seedTenant(t *testing.T, name string, students int) *tenant {
	t.Helper()
	tn := &tenant{}
	slug := strings.ToLower(strings.ReplaceAll(name, " ", ""))

	code, resp := e.do(t, http.MethodPost, "/api/institutions", "", map[string]string{"name": name, "location": "Kochi"})
	require.Equal(t, http.StatusCreated, code, "%v", resp)
	tn.InstitutionID = resp["institution"].(map[string]interface{})["id"].(string)

	ownerEmail := "owner@" + slug + ".test"
	code, resp = e.do(t, http.MethodPost, "/api/owners", "", map[string]string{
		"name": "Owner", "email": ownerEmail, "password": "password", "institutionId": tn.InstitutionID,
	})
	require.Equal(t, http.StatusCreated, code, "%v", resp)
	tn.OwnerToken = e.login(t, "/api/owners/login", map[string]string{"email": ownerEmail, "password": "password"})

	adminEmail := "admin@" + slug + ".test"
	code, resp = e.do(t, http.MethodPost, "/api/admins", tn.OwnerToken, map[string]string{
		"name": "Admin", "email": adminEmail, "password": "password",
	})
	require.Equal(t, http.StatusCreated, code, "%v", resp)
	tn.AdminToken = e.login(t, "/api/admins/login", map[string]string{"email": adminEmail, "password": "password"})

	teacherEmail := "teacher@" + slug + ".test"
	code, resp = e.do(t, http.MethodPost, "/api/teachers", tn.AdminToken, map[string]string{
		"name": "Teacher", "email": teacherEmail, "password": "password",
	})
	require.Equal(t, http.StatusCreated, code, "%v", resp)
	tn.TeacherToken = e.login(t, "/api/teachers/login", map[string]string{"email": teacherEmail, "password": "password"})

	ids := make([]string, 0, students)
	for i := 0; i < students; i++ {
		reg := e.registerStudent(t, tn.InstitutionID, "Student", string(rune('A'+i)))

		code, resp = e.do(t, http.MethodPut, "/api/students/approve/"+reg.ID, tn.AdminToken, nil)
		require.Equal(t, http.StatusOK, code, "%v", resp)

		reg.Token = e.login(t, "/api/students/login", map[string]string{
			"registerNumber": reg.RegisterNumber, "password": reg.password,
		})
		tn.Students = append(tn.Students, reg.enrolled)
		ids = append(ids, reg.ID)
	}

	if students > 0 {
		code, resp = e.do(t, http.MethodPost, "/api/batches", tn.AdminToken, map[string]interface{}{
			"name": "Batch X", "className": "X", "studentIds": ids,
		})
		require.Equal(t, http.StatusCreated, code, "%v", resp)
		tn.BatchID = resp["batch"].(map[string]interface{})["id"].(string)
	}
	return tn
}

type registration struct {
	enrolled
	password string
}

func (e *TestEnv) registerStudent(t *testing.T, institutionID, first, last string) *registration {
	t.Helper()
	code, resp := e.do(t, http.MethodPost, "/api/students", "", map[string]string{
		"firstName": first, "lastName": last, "dob": "2010-05-14", "institutionId": institutionID,
	})
	require.Equal(t, http.StatusCreated, code, "%v", resp)
	data := resp["data"].(map[string]interface{})
	return &registration{
		enrolled: enrolled{
			ID:             data["studentId"].(string),
			RegisterNumber: data["registerNumber"].(string),
		},
		password: data["temporaryPassword"].(string),
	}
}
