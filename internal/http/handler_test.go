package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privlens/internal/config"
	"privlens/internal/domain/privacy"
	"privlens/internal/repository"
	"privlens/internal/service"
	"privlens/internal/vision"
)

const testSecret = "test-secret"

type stubAnnotator struct {
	raw privacy.RawAnnotations
	err error
}

func (s stubAnnotator) Annotate(context.Context, []byte) (privacy.RawAnnotations, error) {
	return s.raw, s.err
}

type stubAuditRepo struct {
	rows []repository.AnalysisAudit
}

func (s stubAuditRepo) ListRecent(context.Context, int, int) ([]repository.AnalysisAudit, error) {
	return s.rows, nil
}

func (s stubAuditRepo) DeleteOlderThan(context.Context, int) (int64, error) {
	return 0, nil
}

type harness struct {
	router *gin.Engine
	fs     afero.Fs
	cfg    *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Name: "privlens"},
		Server: config.ServerConfig{GinMode: gin.TestMode, AllowOrigins: []string{"*"}},
		Upload: config.UploadConfig{
			Dir:        "/uploads",
			FieldNames: []string{"image", "file"},
			MaxBytes:   1 << 20,
		},
		Auth: config.AuthConfig{JWTSecret: testSecret},
	}
}

func newHarness(t *testing.T, annotator vision.Annotator, audit *service.AuditService, mutate func(*config.Config)) harness {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	provider := config.ProviderGoogle
	if annotator == nil {
		provider = config.ProviderMock
	}

	fs := afero.NewMemMapFs()
	analysis := service.NewAnalysisService(annotator, provider, nil, zerolog.Nop())
	h := NewHandler(analysis, audit, cfg, fs, zerolog.Nop())

	r := NewRouter(cfg, zerolog.Nop())
	h.Register(r, JWTAuth(cfg.Auth.JWTSecret))
	return harness{router: r, fs: fs, cfg: cfg}
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("note", "no file here"))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func (h harness) upload(t *testing.T, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func pngImage(t *testing.T, w, hgt int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, hgt))))
	return buf.Bytes()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (bool, string) {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Success, body.Error
}

func uploadedFiles(t *testing.T, fs afero.Fs, dir string) []string {
	t.Helper()
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names
}

func TestAnalyzeMockMode(t *testing.T) {
	h := newHarness(t, nil, nil, nil)

	for _, field := range []string{"image", "file"} {
		t.Run(field, func(t *testing.T) {
			rec := h.upload(t, field, "photo.jpg", []byte("jpeg bytes"))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp AnalyzeResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.True(t, resp.Success)
			require.Len(t, resp.Detections, 2)
			assert.Equal(t, "face", resp.Detections[0].Type)
			assert.Equal(t, "text", resp.Detections[1].Type)
			assert.Equal(t, "123 Main St", resp.Detections[1].Text)
			assert.Equal(t, resp.Explanation, resp.RiskAnalysis.IdentityRisk)
			assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

			assert.Empty(t, uploadedFiles(t, h.fs, h.cfg.Upload.Dir), "upload should be removed")
		})
	}
}

func TestAnalyzeKeepsUploadWhenConfigured(t *testing.T) {
	h := newHarness(t, nil, nil, func(c *config.Config) { c.Upload.Keep = true })

	rec := h.upload(t, "image", "../../etc/passwd", []byte("x"))
	require.Equal(t, http.StatusOK, rec.Code)

	files := uploadedFiles(t, h.fs, "/uploads")
	require.Len(t, files, 1)
	assert.Contains(t, files[0], "passwd")
	assert.NotContains(t, files[0], "/")
}

func TestAnalyzeUploadErrors(t *testing.T) {
	h := newHarness(t, nil, nil, func(c *config.Config) { c.Upload.MaxBytes = 16 })

	rec := h.upload(t, "", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	success, msg := decodeError(t, rec)
	assert.False(t, success)
	assert.Equal(t, "No file uploaded", msg)

	rec = h.upload(t, "photo", "a.jpg", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, msg = decodeError(t, rec)
	assert.Equal(t, "Unexpected file field", msg)

	rec = h.upload(t, "image", "big.jpg", bytes.Repeat([]byte("a"), 64))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, msg = decodeError(t, rec)
	assert.Equal(t, "File too large", msg)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewBufferString(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeWithProviderRenamesPlates(t *testing.T) {
	annotator := stubAnnotator{raw: privacy.RawAnnotations{
		Texts: []privacy.TextAnnotation{
			{Description: "ABC-1234\nhello"},
			{Description: "ABC-1234", Vertices: []privacy.Vertex{{X: 10, Y: 10}, {X: 60, Y: 10}, {X: 60, Y: 30}, {X: 10, Y: 30}}},
			{Description: "hello", Vertices: []privacy.Vertex{{X: 0, Y: 0}, {X: 50, Y: 0}, {X: 50, Y: 50}, {X: 0, Y: 50}}},
		},
	}}
	h := newHarness(t, annotator, nil, nil)

	rec := h.upload(t, "image", "car.png", pngImage(t, 100, 100))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Detections, 2)
	assert.Equal(t, "license_plate", resp.Detections[0].Type)
	assert.Equal(t, BoundingBox{X: 0.1, Y: 0.1, Width: 0.5, Height: 0.2}, resp.Detections[0].BoundingBox)
	assert.Equal(t, 0.8, resp.Detections[0].Confidence)
	assert.Equal(t, "text", resp.Detections[1].Type)
}

func TestAnalyzeErrorMapping(t *testing.T) {
	cfgErr := &vision.ConfigurationError{Message: "No Google Cloud Vision credentials found."}
	disabled := vision.NewUpstreamError(errors.New("Cloud Vision API has not been used in project 1 before or it is disabled"))

	tests := []struct {
		name      string
		annotator vision.Annotator
		content   []byte
		status    int
		message   string
	}{
		{"configuration", vision.Unavailable(cfgErr), nil, http.StatusInternalServerError, cfgErr.Message},
		{"upstream", stubAnnotator{err: disabled}, nil, http.StatusInternalServerError, disabled.Message()},
		{"internal", stubAnnotator{err: errors.New("boom")}, nil, http.StatusInternalServerError, "Failed to analyze file"},
		{"not an image", stubAnnotator{}, []byte("plain text"), http.StatusBadRequest, "Unsupported or corrupt image file"},
		{"empty file", stubAnnotator{}, []byte{}, http.StatusBadRequest, "Uploaded file is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.annotator, nil, nil)
			content := tt.content
			if content == nil {
				content = pngImage(t, 8, 8)
			}

			rec := h.upload(t, "image", "a.png", content)
			assert.Equal(t, tt.status, rec.Code)
			success, msg := decodeError(t, rec)
			assert.False(t, success)
			assert.Equal(t, tt.message, msg)
			assert.Empty(t, uploadedFiles(t, h.fs, h.cfg.Upload.Dir))
		})
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "mock", body["provider"])
	assert.Equal(t, true, body["mock"])
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	id := "6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f"
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, id)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(requestIDHeader))
}

func TestRequestIDRejectsNonUUID(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	for _, id := range []string{"abc-123", "/../../x", "../../../etc/passwd"} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, id)
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		got := rec.Header().Get(requestIDHeader)
		assert.NotEqual(t, id, got)
		_, err := uuid.Parse(got)
		assert.NoError(t, err, got)
	}
}

func TestAnalyzeKeepsUploadInsideDir(t *testing.T) {
	h := newHarness(t, nil, nil, func(c *config.Config) {
		c.Upload.Dir = "/srv/uploads"
		c.Upload.Keep = true
	})

	body, contentType := multipartBody(t, "image", "victim.json", []byte("{}"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(requestIDHeader, "/../../x")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, []string{"uploads"}, uploadedFiles(t, h.fs, "/srv"))
	files := uploadedFiles(t, h.fs, "/srv/uploads")
	require.Len(t, files, 1)
	assert.Contains(t, files[0], "victim.json")
}

func TestStoreUploadStaysUnderDir(t *testing.T) {
	cfg := testConfig()
	fs := afero.NewMemMapFs()
	h := NewHandler(service.NewAnalysisService(nil, config.ProviderMock, nil, zerolog.Nop()), nil, cfg, fs, zerolog.Nop())

	for _, id := range []string{"/../../x", "..", "a/b/c/d/e", ""} {
		path, err := h.storeUpload(id, "../../photo.png", []byte("x"))
		require.NoError(t, err, id)
		assert.Equal(t, cfg.Upload.Dir, filepath.Dir(path), id)
	}
}

func signedToken(t *testing.T, secret string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestListAnalysesRequiresToken(t *testing.T) {
	rows := []repository.AnalysisAudit{{ID: 1, RequestID: "r1", Provider: "google", Outcome: "ok", DetectionCount: 2}}
	audit := service.NewAuditService(stubAuditRepo{rows: rows}, zerolog.Nop())
	h := newHarness(t, nil, audit, nil)

	get := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/analyses?limit=5", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, get("").Code)
	assert.Equal(t, http.StatusUnauthorized, get(signedToken(t, "other-secret", time.Now().Add(time.Hour))).Code)

	expired := get(signedToken(t, testSecret, time.Now().Add(-time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, expired.Code)
	_, msg := decodeError(t, expired)
	assert.Equal(t, "token expired", msg)

	rec := get(signedToken(t, testSecret, time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Data []repository.AnalysisAudit `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "r1", body.Data[0].RequestID)
}

func TestListAnalysesNotRegisteredWithoutAudit(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
