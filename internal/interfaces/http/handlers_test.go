package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/application/service"
	"github.com/garyjia/ncr-tracker/internal/domain/policy"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/auth"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/export"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/persistence/memory"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/storage"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

type apiResponse struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	Data          json.RawMessage `json:"data"`
	Error         string          `json:"error"`
	Kind          string          `json:"kind"`
	RequiredRoles []string        `json:"required_roles"`
	Fields        []string        `json:"fields"`
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	clock  *stepClock
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	clock := &stepClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	pol := policy.New(policy.DefaultConfig())

	provider, err := auth.NewJWTProvider(auth.JWTConfig{Secret: "test-secret", TTL: time.Hour}, clock)
	require.NoError(t, err)
	identity := service.NewIdentityService(memory.NewUserRepository(), auth.NewBcryptHasher(bcrypt.MinCost),
		provider, pol, clock, nopLogger{})
	require.NoError(t, identity.SeedAdmin(context.Background(), service.RegisterInput{
		Name: "Admin", Email: "admin@plant.example.com", EmployeeID: "ADM-1", Password: "admin-pass",
	}))

	attachments, err := storage.NewLocalAttachmentStore(
		storage.Config{BaseDir: filepath.Join(t.TempDir(), "uploads")}, zap.NewNop())
	require.NoError(t, err)

	ncr := service.NewNCRService(
		service.NCRServiceConfig{},
		memory.NewNCRRepository(),
		memory.NewSequenceRepository(),
		memory.NewTxManager(),
		attachments,
		[]port.TabularExporter{export.NewCSVExporter(export.Config{}), export.NewXLSXExporter(export.Config{}, nil)},
		pol, nil, clock, nopLogger{},
	)
	rejections := service.NewRejectionService(memory.NewRejectionRepository(), attachments, pol, nil, clock, nopLogger{})

	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode
	server := NewServer(cfg, Services{NCR: ncr, Rejections: rejections, Identity: identity}, nopLogger{})

	return &testAPI{t: t, router: server.Router(), clock: clock}
}

func (a *testAPI) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.serve(req)
}

func (a *testAPI) serve(req *http.Request) (*httptest.ResponseRecorder, apiResponse) {
	a.t.Helper()
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (a *testAPI) login(email, password string) string {
	a.t.Helper()
	w, resp := a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, w.Code, resp.Error)
	var session struct {
		Token string `json:"token"`
	}
	require.NoError(a.t, json.Unmarshal(resp.Data, &session))
	return session.Token
}

func (a *testAPI) signup(name, email string) string {
	a.t.Helper()
	w, resp := a.do(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": name, "email": email, "employee_id": "E-" + name, "password": "pass1234",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, resp.Error)
	var session struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	require.NoError(a.t, json.Unmarshal(resp.Data, &session))
	assert.Equal(a.t, "Inspector", session.User.Role)
	return session.Token
}

type reportJSON struct {
	ID             int64   `json:"id"`
	ReportNumber   string  `json:"report_number"`
	Department     string  `json:"department"`
	Area           string  `json:"area"`
	Description    string  `json:"description"`
	RaisedByName   string  `json:"raised_by_name"`
	Status         string  `json:"status"`
	ComputedStatus string  `json:"computed_status"`
	TargetDate     *string `json:"target_date"`
	ClosureDate    *string `json:"closure_date"`
	AttachmentRef  string  `json:"attachment_ref"`
	CreatedBy      int64   `json:"created_by"`
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decodeReport(t *testing.T, resp apiResponse) reportJSON {
	t.Helper()
	var r reportJSON
	require.NoError(t, json.Unmarshal(resp.Data, &r))
	return r
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t)
	w, resp := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestAuth_TokenRequired(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.do(http.MethodGet, "/api/ncr", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", resp.Kind)

	w, _ = api.do(http.MethodGet, "/api/ncr", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := api.signup("ina", "ina@plant.example.com")
	req := httptest.NewRequest(http.MethodGet, "/api/ncr", nil)
	req.Header.Set("Authorization", token)
	w, _ = api.serve(req)
	assert.Equal(t, http.StatusOK, w.Code, "bare tokens are accepted")

	w, resp = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ina@plant.example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid credentials", resp.Error)

	w, resp = api.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), "ina@plant.example.com")
}

func TestAuth_AdminRegistersUsers(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login("admin@plant.example.com", "admin-pass")
	inspector := api.signup("ina", "ina@plant.example.com")

	body := map[string]string{"name": "Eng", "email": "eng@plant.example.com", "employee_id": "E-2", "password": "pass1234", "role": "engineer"}
	w, resp := api.do(http.MethodPost, "/api/auth/users", inspector, body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, []string{"Admin"}, resp.RequiredRoles)

	w, resp = api.do(http.MethodPost, "/api/auth/users", admin, body)
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)
	assert.Contains(t, string(resp.Data), `"role":"Engineer"`)
	assert.NotContains(t, string(resp.Data), "password")

	w, resp = api.do(http.MethodPost, "/api/auth/signup", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"email"}, resp.Fields)
}

func TestNCR_CreateAndList(t *testing.T) {
	api := newTestAPI(t)
	token := api.signup("ina", "ina@plant.example.com")

	w, resp := api.do(http.MethodPost, "/api/ncr", token, map[string]interface{}{
		"severity":                  "critical",
		"nonconformity_description": "  Porosity <b>in</b> casting ",
		"responsible_department":    "Foundry",
		"process_area":              "Pour line 2",
		"ncr_source":                "In-process",
		"raised_by_name":            "Spoofed",
		"target_date":               "2025-06-10",
	})
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)
	created := decodeReport(t, resp)
	assert.Equal(t, "NCR-2025-0001", created.ReportNumber)
	assert.Equal(t, "Foundry", created.Department)
	assert.Equal(t, "Pour line 2", created.Area)
	assert.Equal(t, "ina", created.RaisedByName, "raised-by comes from the principal")
	assert.Equal(t, "Overdue", created.ComputedStatus)

	w, resp = api.do(http.MethodPost, "/api/ncr/create", token, map[string]interface{}{
		"severity": "minor", "description": "Label smudged", "department": "Packing",
	})
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)
	assert.Equal(t, "NCR-2025-0002", decodeReport(t, resp).ReportNumber)

	w, resp = api.do(http.MethodPost, "/api/ncr", token, map[string]interface{}{"department": "QA"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", resp.Kind)
	assert.Equal(t, []string{"severity", "description"}, resp.Fields)

	w, resp = api.do(http.MethodPost, "/api/ncr", token, map[string]interface{}{
		"severity": "major", "description": "x", "target_date": "next week",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"target_date"}, resp.Fields)

	list := func(query string) []reportJSON {
		w, resp := api.do(http.MethodGet, "/api/ncr"+query, token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var reports []reportJSON
		require.NoError(t, json.Unmarshal(resp.Data, &reports))
		return reports
	}

	all := list("")
	require.Len(t, all, 2)
	assert.Equal(t, "NCR-2025-0002", all[0].ReportNumber, "newest first")

	assert.Len(t, list("?status=Overdue"), 1)
	assert.Len(t, list("?status=open"), 2)
	assert.Len(t, list("?severity=CRITICAL"), 1)
	assert.Len(t, list("?source_type=In-process"), 1)
	assert.Len(t, list("?ncr_source=In-process"), 1)
	assert.Len(t, list("?area=pour"), 1)
	byNumber := list("?report_number=ncr-2025-0001")
	require.Len(t, byNumber, 1)
	assert.Equal(t, "NCR-2025-0001", byNumber[0].ReportNumber)
	assert.Equal(t, "Foundry", byNumber[0].Department)
	assert.Len(t, list("?report_number=NCR-2025-0001&department=Packing"), 0, "other filters still apply")
	assert.Len(t, list("?report_number=NCR-2025-0099"), 0)
	assert.Len(t, list("?to=2025-06-15"), 2, "a date-only upper bound covers the whole day")
	assert.Len(t, list("?from=2025-06-16"), 0)
	assert.Len(t, list("?from=yesterday&severity=enormous"), 2, "unparseable filters are ignored")
}

func TestNCR_UpdateStatusDelete(t *testing.T) {
	api := newTestAPI(t)
	inspector := api.signup("ina", "ina@plant.example.com")
	admin := api.login("admin@plant.example.com", "admin-pass")

	_, resp := api.do(http.MethodPost, "/api/ncr", inspector, map[string]interface{}{
		"severity": "major", "description": "Burr", "target_date": "2025-07-01",
	})
	created := decodeReport(t, resp)
	path := "/api/ncr/" + itoa(created.ID)

	w, resp := api.do(http.MethodPut, path, inspector, map[string]interface{}{
		"report_number": "HACKED",
		"id":            999,
		"created_by":    77,
		"status":        "Closed",
		"root_cause":    "Worn tool",
		"target_date":   nil,
	})
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	updated := decodeReport(t, resp)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "NCR-2025-0001", updated.ReportNumber)
	assert.Equal(t, created.CreatedBy, updated.CreatedBy)
	assert.Equal(t, "Open", updated.Status, "status only changes through the status endpoint")
	assert.Nil(t, updated.TargetDate)

	w, resp = api.do(http.MethodPatch, path+"/status", inspector, map[string]string{"status": "Closed"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.ElementsMatch(t, []string{"Engineer", "Manager", "Admin"}, resp.RequiredRoles)

	w, resp = api.do(http.MethodPatch, path+"/status", admin, map[string]string{"status": "Archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Error, "Waiting for Verification")

	w, resp = api.do(http.MethodPatch, path+"/status", admin, map[string]string{"status": "closed", "closure_date": "2025-06-14"})
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	closed := decodeReport(t, resp)
	assert.Equal(t, "Closed", closed.Status)
	require.NotNil(t, closed.ClosureDate)
	assert.True(t, strings.HasPrefix(*closed.ClosureDate, "2025-06-14"))

	w, resp = api.do(http.MethodPatch, path+"/status", admin, map[string]string{"status": "In Progress"})
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	assert.Nil(t, decodeReport(t, resp).ClosureDate)

	w, _ = api.do(http.MethodDelete, path, inspector, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp = api.do(http.MethodDelete, path, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "NCR-2025-0001", decodeReport(t, resp).ReportNumber)

	w, resp = api.do(http.MethodGet, path, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", resp.Kind)

	w, _ = api.do(http.MethodGet, "/api/ncr/abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNCR_SummaryAndExport(t *testing.T) {
	api := newTestAPI(t)
	token := api.signup("ina", "ina@plant.example.com")

	descriptions := []string{`He said "stop"`, "Second, with comma", "Third\nline"}
	for _, desc := range descriptions {
		w, resp := api.do(http.MethodPost, "/api/ncr", token, map[string]interface{}{"severity": "minor", "description": desc})
		require.Equal(t, http.StatusCreated, w.Code, resp.Error)
	}

	w, resp := api.do(http.MethodGet, "/api/ncr/summary", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		Total      int            `json:"total"`
		Open       int            `json:"open"`
		BySeverity map[string]int `json:"by_severity"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Open)
	assert.Equal(t, map[string]int{"Minor": 3}, summary.BySeverity)

	w, _ = api.do(http.MethodGet, "/api/ncr/export?format=csv", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="ncr_reports.csv"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), `"He said ""stop"""`)

	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1+len(descriptions))

	headers := make([]string, len(service.ExportColumns))
	descCol := -1
	for i, col := range service.ExportColumns {
		headers[i] = col.Header
		if col.Key == "description" {
			descCol = i
		}
	}
	assert.Equal(t, headers, records[0])
	require.GreaterOrEqual(t, descCol, 0)

	exported := make([]string, 0, len(descriptions))
	for _, rec := range records[1:] {
		require.Len(t, rec, len(headers))
		exported = append(exported, rec[descCol])
	}
	assert.ElementsMatch(t, descriptions, exported)

	w, _ = api.do(http.MethodGet, "/api/ncr/export", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="ncr_reports.xlsx"`, w.Header().Get("Content-Disposition"))

	w, resp = api.do(http.MethodGet, "/api/ncr/export?format=pdf", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"format"}, resp.Fields)
}

func multipartRequest(t *testing.T, path, token string, fields map[string]string, files map[string][]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, names := range files {
		for _, name := range names {
			part, err := mw.CreateFormFile(field, name)
			require.NoError(t, err)
			_, err = part.Write([]byte("content of " + name))
			require.NoError(t, err)
		}
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestNCR_MultipartAttachment(t *testing.T) {
	api := newTestAPI(t)
	token := api.signup("ina", "ina@plant.example.com")

	req := multipartRequest(t, "/api/ncr", token,
		map[string]string{"severity": "Major", "description": "Crack"},
		map[string][]string{"attachment": {"crack.pdf"}})
	w, resp := api.serve(req)
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)
	created := decodeReport(t, resp)
	assert.True(t, strings.HasPrefix(created.AttachmentRef, "ncr-"))

	w, _ = api.do(http.MethodGet, "/api/ncr/"+itoa(created.ID)+"/attachment", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "content of crack.pdf", w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	req = multipartRequest(t, "/api/ncr", token,
		map[string]string{"severity": "Major", "description": "Crack"},
		map[string][]string{"attachment": {"payload.exe"}})
	w, resp = api.serve(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"attachment"}, resp.Fields)
}

func TestRejections(t *testing.T) {
	api := newTestAPI(t)
	token := api.signup("ina", "ina@plant.example.com")
	admin := api.login("admin@plant.example.com", "admin-pass")

	req := multipartRequest(t, "/api/rejections", token,
		map[string]string{"materialName": "Steel sheet", "quantityRejected": "4", "shift": "A"},
		map[string][]string{"images": {"a.png", "b.jpg"}})
	w, resp := api.serve(req)
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)

	var rejection struct {
		ID     int64    `json:"id"`
		Images []string `json:"images"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &rejection))
	assert.Len(t, rejection.Images, 2)

	w, resp = api.do(http.MethodPost, "/api/rejections/create", token, map[string]interface{}{"material_name": "Bolt", "quantity_rejected": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"quantity_rejected"}, resp.Fields)

	w, _ = api.do(http.MethodGet, "/api/rejections/"+itoa(rejection.ID), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(http.MethodDelete, "/api/rejections/"+itoa(rejection.ID), token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = api.do(http.MethodDelete, "/api/rejections/"+itoa(rejection.ID), admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = api.do(http.MethodGet, "/api/rejections", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", string(resp.Data))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Equal(t, "abc", bearerToken("abc"))
	assert.Equal(t, "", bearerToken(""))
}
