package tests

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func (e *TestEnv) sendProfileForm(t *testing.T, token, className, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("className", className))
	if content != nil {
		fw, err := mw.CreateFormFile("profilePhoto", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/students/profile", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	e.Router.ServeHTTP(rr, req)
	return rr
}

func TestGateway_StudentProfile(t *testing.T) {
	env := setupGatewayTestEnv(t)
	tn := env.seedTenant(t, "Alpha Academy", 1)
	st := tn.Students[0]

	t.Run("JSON update", func(t *testing.T) {
		code, resp := env.do(t, http.MethodPut, "/api/students/profile", st.Token, map[string]string{
			"className": "IX", "medium": "English", "syllabus": "CBSE",
		})
		require.Equal(t, http.StatusOK, code, "%v", resp)
		student := resp["student"].(map[string]interface{})
		assert.Equal(t, "IX", student["className"])
		assert.NotContains(t, student, "password_hash")

		code, resp = env.do(t, http.MethodGet, "/api/batches/students?className=IX", tn.AdminToken, nil)
		require.Equal(t, http.StatusOK, code)
		assert.Len(t, resp["students"], 1)
	})

	t.Run("Invalid class", func(t *testing.T) {
		code, _ := env.do(t, http.MethodPut, "/api/students/profile", st.Token, map[string]string{"className": "XIII"})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("Photo upload is served back", func(t *testing.T) {
		rr := env.sendProfileForm(t, st.Token, "X", "me.png", pngHeader)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Contains(t, rr.Body.String(), `"profilePhoto":"/uploads/student-`)

		path := extractPhotoPath(rr.Body.String())
		require.NotEmpty(t, path)
		got := httptest.NewRecorder()
		env.Router.ServeHTTP(got, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, got.Code)
	})

	t.Run("Non image upload is rejected", func(t *testing.T) {
		rr := env.sendProfileForm(t, st.Token, "X", "notes.png", []byte("just some text"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Images only")
	})

	t.Run("Staff cannot edit a student profile", func(t *testing.T) {
		code, _ := env.do(t, http.MethodPut, "/api/students/profile", tn.AdminToken, map[string]string{"className": "X"})
		assert.Equal(t, http.StatusForbidden, code)
	})
}

func extractPhotoPath(body string) string {
	const key = `"profilePhoto":"`
	i := strings.Index(body, key)
	if i < 0 {
		return ""
	}
	rest := body[i+len(key):]
	return rest[:strings.IndexByte(rest, '"')]
}

func TestGateway_ProfilePasswordChangeRevokesSessions(t *testing.T) {
	env := setupGatewayTestEnv(t)
	tn := env.seedTenant(t, "Alpha Academy", 1)
	st := tn.Students[0]

	other := env.login(t, "/api/auth/login", map[string]string{
		"identifier": st.RegisterNumber, "password": "Student10",
	})

	code, resp := env.do(t, http.MethodPut, "/api/students/profile", st.Token, map[string]string{"password": "fresh-secret"})
	require.Equal(t, http.StatusOK, code, "%v", resp)

	for _, token := range []string{st.Token, other} {
		code, _ = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, code)
	}

	token := env.login(t, "/api/students/login", map[string]string{
		"registerNumber": st.RegisterNumber, "password": "fresh-secret",
	})
	code, _ = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, code)
}
