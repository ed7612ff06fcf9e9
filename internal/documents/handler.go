package documents

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docflow-backend/internal/access"
	"docflow-backend/internal/shared/query"
	"docflow-backend/internal/shared/server/middleware"
	"docflow-backend/internal/shared/server/respond"
	"docflow-backend/internal/shared/storage/object"
	"docflow-backend/internal/shared/telemetry"
)

const (
	defaultMaxUploadSize = 3 << 20 // 3MB
	uploadField          = "document"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	Store          object.ObjectStore
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, store object.ObjectStore, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadSize
	}
	return &Handler{Svc: svc, Store: store, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches document routes to an authenticated router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	writers := middleware.RequireRoles(access.RoleAdmin, access.RoleEditor)

	rg.POST("/documents", writers, h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.details)
	rg.GET("/documents/:id/download", h.download)
	rg.PATCH("/documents/:id", writers, OwnershipGuard(h.Svc), h.update)
	rg.DELETE("/documents/:id", writers, OwnershipGuard(h.Svc), h.remove)
}

type uploadForm struct {
	Title       string  `form:"title" binding:"required,min=1,max=255"`
	Description *string `form:"description" binding:"omitempty,min=1"`
}

type updateForm struct {
	Title       *string `form:"title" binding:"omitempty,min=1,max=255"`
	Description *string `form:"description" binding:"omitempty,min=1"`
}

type listQuery struct {
	Title     string `form:"title" binding:"omitempty,max=255"`
	MimeType  string `form:"mimeType" binding:"omitempty,max=150"`
	Scope     string `form:"scope" binding:"omitempty,oneof=active all deleted"`
	IsDeleted *bool  `form:"isDeleted"`
	Select    string `form:"select"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=100"`
	SortOrder string `form:"sortOrder" binding:"omitempty,oneof=ASC DESC asc desc"`
}

func (q listQuery) scope() query.Scope {
	if q.Scope != "" {
		return query.ParseScope(q.Scope)
	}
	if q.IsDeleted != nil && *q.IsDeleted {
		return query.ScopeDeleted
	}
	return query.ScopeActive
}

func (h *Handler) upload(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+(1<<20))

	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		respond.Invalid(c, err)
		return
	}

	blob, ok := h.saveUpload(c, p.UserID, true)
	if !ok {
		return
	}

	res, err := h.Svc.Create(c.Request.Context(), p.UserID, Metadata{Title: form.Title, Description: form.Description}, *blob)
	if err != nil {
		h.discardUpload(c, blob)
		respond.FromError(c, err)
		return
	}
	c.Set(middleware.DocumentIDKey, res.ID)
	respond.Created(c, CreateResponse{ID: res.ID, Message: res.Message})
}

func (h *Handler) update(c *gin.Context) {
	current, ok := CurrentDocument(c)
	if !ok {
		respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+(1<<20))

	var form updateForm
	if err := c.ShouldBind(&form); err != nil {
		respond.Invalid(c, err)
		return
	}

	blob, ok := h.saveUpload(c, current.UserID, false)
	if !ok {
		return
	}

	if _, err := h.Svc.Update(c.Request.Context(), current.ID, Changes{Title: form.Title, Description: form.Description}, current, blob); err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Text(c, http.StatusOK, MsgUpdated)
}

func (h *Handler) remove(c *gin.Context) {
	current, ok := CurrentDocument(c)
	if !ok {
		respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
		return
	}
	deleteFile := true
	if raw := c.Query("deleteFile"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "deleteFile must be a boolean", nil)
			return
		}
		deleteFile = v
	}
	if err := h.Svc.SoftDelete(c.Request.Context(), current, deleteFile); err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Text(c, http.StatusOK, fmt.Sprintf("Document %s deleted successfully", current.ID))
}

func (h *Handler) download(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	dl, err := h.Svc.Download(c.Request.Context(), id)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	defer dl.Body.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": dl.FileName})
	c.DataFromReader(http.StatusOK, -1, dl.MimeType, dl.Body, map[string]string{
		"Content-Disposition": disposition,
	})
}

func (h *Handler) details(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	doc, err := h.Svc.Details(c.Request.Context(), id)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toResponse(doc))
}

func (h *Handler) list(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)

	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respond.Invalid(c, err)
		return
	}
	scope := q.scope()
	if scope != query.ScopeActive && !p.IsAdmin() {
		respond.Error(c, http.StatusForbidden, "forbidden", access.ForbiddenMessage, nil)
		return
	}

	res, err := h.Svc.List(c.Request.Context(), ListFilter{
		Title:     q.Title,
		MimeType:  q.MimeType,
		Scope:     scope,
		Select:    query.SplitList(q.Select),
		Page:      q.Page,
		Limit:     q.Limit,
		SortOrder: query.ParseSortOrder(q.SortOrder),
	})
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, ToListResponse(res))
}

// saveUpload stores the multipart file, if any, after checking its size and
// type. It writes the error response itself and reports false on failure.
func (h *Handler) saveUpload(c *gin.Context, ownerID string, required bool) (*object.Blob, bool) {
	if !required && !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, true
	}
	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		if !required && errors.Is(err, http.ErrMissingFile) {
			return nil, true
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "File is required", nil)
		return nil, false
	}
	if fileHeader.Size > h.MaxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "File too large", nil)
		return nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return nil, false
	}
	defer file.Close()

	mimeType, body, err := object.Sniff(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return nil, false
	}
	if !object.AllowedUpload(mimeType) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Only .pdf and .docx files are allowed", nil)
		return nil, false
	}

	blob, err := h.Store.Save(c.Request.Context(), ownerID, fileHeader.Filename, body)
	if err != nil {
		telemetry.Error("document.upload_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"user_id":    ownerID,
			"error":      err,
		})
		respond.Error(c, http.StatusInternalServerError, "internal", "Failed to store file", nil)
		return nil, false
	}
	return &blob, true
}

func (h *Handler) discardUpload(c *gin.Context, blob *object.Blob) {
	if blob == nil {
		return
	}
	rel := h.Store.ToRelative(blob.Location)
	if err := h.Store.Delete(c.Request.Context(), rel); err != nil {
		telemetry.Warn("document.orphan_cleanup_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"file_path":  rel,
			"error":      err,
		})
	}
}
