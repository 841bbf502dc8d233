package http

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ncr-tracker/internal/application/service"
	"github.com/garyjia/ncr-tracker/internal/domain/apperr"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services     Services
	exposeErrors bool
	logger       Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, exposeErrors bool, logger Logger) *Handlers {
	return &Handlers{
		services:     services,
		exposeErrors: exposeErrors,
		logger:       logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success       bool        `json:"success"`
	Message       string      `json:"message,omitempty"`
	Data          interface{} `json:"data,omitempty"`
	Error         string      `json:"error,omitempty"`
	Kind          string      `json:"kind,omitempty"`
	RequiredRoles []string    `json:"required_roles,omitempty"`
	Fields        []string    `json:"fields,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	EmployeeID string `json:"employee_id"`
	Password   string `json:"password"`
	Role       string `json:"role"`
}

func (r registerRequest) input() service.RegisterInput {
	return service.RegisterInput{
		Name:       r.Name,
		Email:      r.Email,
		EmployeeID: r.EmployeeID,
		Password:   r.Password,
		Role:       r.Role,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// Signup handles POST /api/auth/signup
func (h *Handlers) Signup(c *gin.Context) {
	var req registerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	session, err := h.services.Identity.Register(c.Request.Context(), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Message: "User registered successfully", Data: session})
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}
	session, err := h.services.Identity.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Message: "Login successful", Data: session})
}

// Me handles GET /api/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, err := h.services.Identity.Me(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: user})
}

// RegisterUser handles POST /api/auth/users
func (h *Handlers) RegisterUser(c *gin.Context) {
	var req registerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.services.Identity.RegisterByAdmin(c.Request.Context(), principalFrom(c), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Message: "User created", Data: user})
}

// ListUsers handles GET /api/auth/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.services.Identity.ListUsers(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: users})
}

// CreateNCR handles POST /api/ncr
func (h *Handlers) CreateNCR(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	input, err := createNCRInput(body)
	if err != nil {
		h.fail(c, err)
		return
	}

	report, err := h.services.NCR.Create(c.Request.Context(), principalFrom(c), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Message: "NCR created successfully", Data: report})
}

// ListNCRs handles GET /api/ncr
func (h *Handlers) ListNCRs(c *gin.Context) {
	reports, err := h.services.NCR.List(c.Request.Context(), listFilter(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: reports})
}

// SummarizeNCRs handles GET /api/ncr/summary
func (h *Handlers) SummarizeNCRs(c *gin.Context) {
	summary, err := h.services.NCR.Summarize(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// ExportNCRs handles GET /api/ncr/export
func (h *Handlers) ExportNCRs(c *gin.Context) {
	result, err := h.services.NCR.Export(c.Request.Context(), listFilter(c), c.Query("format"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	c.Data(http.StatusOK, result.MimeType, result.Content)
}

// GetNCR handles GET /api/ncr/:id
func (h *Handlers) GetNCR(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	report, err := h.services.NCR.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// UpdateNCR handles PUT /api/ncr/:id
func (h *Handlers) UpdateNCR(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	body, err := readBody(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	input, err := updateNCRInput(body)
	if err != nil {
		h.fail(c, err)
		return
	}

	report, err := h.services.NCR.Update(c.Request.Context(), principalFrom(c), id, input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Message: "NCR updated successfully", Data: report})
}

// ChangeNCRStatus handles PATCH /api/ncr/:id/status
func (h *Handlers) ChangeNCRStatus(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	body, err := readBody(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	target := body.fields.text("status")
	if target == "" {
		h.fail(c, apperr.MissingFields([]string{"status"}))
		return
	}
	closureDate, _, err := body.fields.date("closure_date", "closure_date")
	if err != nil {
		h.fail(c, err)
		return
	}

	report, err := h.services.NCR.ChangeStatus(c.Request.Context(), principalFrom(c), id, target, closureDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Message: "Status updated successfully", Data: report})
}

// DeleteNCR handles DELETE /api/ncr/:id
func (h *Handlers) DeleteNCR(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	report, err := h.services.NCR.Delete(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Message: "NCR deleted successfully", Data: report})
}

// DownloadAttachment handles GET /api/ncr/:id/attachment
func (h *Handlers) DownloadAttachment(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	ref, content, err := h.services.NCR.Attachment(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(ref))
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, ref))
	c.Data(http.StatusOK, contentType, content)
}

// CreateRejection handles POST /api/rejections
func (h *Handlers) CreateRejection(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	input, err := createRejectionInput(body)
	if err != nil {
		h.fail(c, err)
		return
	}

	rejection, err := h.services.Rejections.Create(c.Request.Context(), principalFrom(c), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Message: "Rejection recorded", Data: rejection})
}

// ListRejections handles GET /api/rejections
func (h *Handlers) ListRejections(c *gin.Context) {
	rejections, err := h.services.Rejections.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rejections})
}

// GetRejection handles GET /api/rejections/:id
func (h *Handlers) GetRejection(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	rejection, err := h.services.Rejections.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rejection})
}

// DeleteRejection handles DELETE /api/rejections/:id
func (h *Handlers) DeleteRejection(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	rejection, err := h.services.Rejections.Delete(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Message: "Rejection deleted", Data: rejection})
}

func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, apperr.Validation(fmt.Sprintf("invalid JSON body: %v", err)))
		return false
	}
	return true
}

// fail renders err with the status its kind maps to
func (h *Handlers) fail(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			appErr = apperr.Validation(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		} else {
			appErr = apperr.Storage("request failed", err)
		}
	}

	status := statusFor(appErr.Kind)
	message := appErr.Message
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err)
		if h.exposeErrors {
			message = appErr.Error()
		} else {
			message = "internal server error"
		}
	}

	c.JSON(status, Response{
		Success:       false,
		Error:         message,
		Kind:          appErr.Kind.String(),
		RequiredRoles: appErr.RequiredRoles,
		Fields:        appErr.Fields,
	})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
