package ingestions

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docflow-backend/internal/access"
	"docflow-backend/internal/shared/query"
	"docflow-backend/internal/shared/server/middleware"
	"docflow-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches ingestion routes to an authenticated router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	writers := middleware.RequireRoles(access.RoleAdmin, access.RoleEditor)
	admins := middleware.RequireRoles(access.RoleAdmin)

	rg.POST("/ingestions/documents/:id/trigger", writers, h.trigger)
	rg.GET("/ingestions", h.list)
	rg.GET("/ingestions/pending", admins, h.pending)
	rg.GET("/ingestions/:id", h.details)
	rg.DELETE("/ingestions/:id", admins, h.remove)
}

type listQuery struct {
	ID         string `form:"id" binding:"omitempty,uuid"`
	DocumentID string `form:"documentId" binding:"omitempty,uuid"`
	UserID     string `form:"userId" binding:"omitempty,uuid"`
	Status     string `form:"status"`
	HasLogs    *bool  `form:"hasLogs"`
	HasError   *bool  `form:"hasError"`
	Scope      string `form:"scope" binding:"omitempty,oneof=active all deleted"`
	IsDeleted  *bool  `form:"isDeleted"`
	Select     string `form:"select"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=100"`
	SortOrder  string `form:"sortOrder" binding:"omitempty,oneof=ASC DESC asc desc"`
}

func (q listQuery) scope() query.Scope {
	if q.Scope != "" {
		return query.ParseScope(q.Scope)
	}
	if q.IsDeleted != nil {
		if *q.IsDeleted {
			return query.ScopeDeleted
		}
		return query.ScopeActive
	}
	return query.ScopeActive
}

func (q listQuery) statuses() ([]Status, bool) {
	raw := query.SplitList(q.Status)
	out := make([]Status, 0, len(raw))
	for _, v := range raw {
		s, ok := ParseStatus(v)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func (h *Handler) trigger(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	docID, ok := pathID(c, "Invalid Document ID")
	if !ok {
		return
	}
	c.Set(middleware.DocumentIDKey, docID)

	res, err := h.Svc.Trigger(c.Request.Context(), p, docID)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	c.Set(middleware.IngestionIDKey, res.IngestionID)
	c.Set(middleware.StatusTransitionKey, "none->"+string(StatusQueued))
	respond.Accepted(c, TriggerResponse{
		Message:     res.Message,
		DocumentID:  res.DocumentID,
		IngestionID: res.IngestionID,
	})
}

func (h *Handler) details(c *gin.Context) {
	id, ok := pathID(c, "Invalid Ingestion ID")
	if !ok {
		return
	}
	c.Set(middleware.IngestionIDKey, id)
	ing, err := h.Svc.Details(c.Request.Context(), id)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toResponse(ing))
}

func (h *Handler) remove(c *gin.Context) {
	id, ok := pathID(c, "Invalid Ingestion ID")
	if !ok {
		return
	}
	c.Set(middleware.IngestionIDKey, id)
	if err := h.Svc.SoftDelete(c.Request.Context(), id); err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Text(c, http.StatusOK, DeletedMessage(id))
}

func (h *Handler) list(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)

	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respond.Invalid(c, err)
		return
	}
	statuses, ok := q.statuses()
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "One or more statuses are invalid.", nil)
		return
	}
	scope := q.scope()
	if scope != query.ScopeActive && !p.IsAdmin() {
		respond.Error(c, http.StatusForbidden, "forbidden", access.ForbiddenMessage, nil)
		return
	}

	res, err := h.Svc.List(c.Request.Context(), ListFilter{
		ID:         q.ID,
		DocumentID: q.DocumentID,
		UserID:     q.UserID,
		Statuses:   statuses,
		HasLogs:    q.HasLogs,
		HasError:   q.HasError,
		Scope:      scope,
		Select:     query.SplitList(q.Select),
		Page:       q.Page,
		Limit:      q.Limit,
		SortOrder:  query.ParseSortOrder(q.SortOrder),
	})
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toListResponse(res))
}

func (h *Handler) pending(c *gin.Context) {
	respond.OK(c, toPendingResponse(h.Svc.Pending(), h.Svc.Failures()))
}

func pathID(c *gin.Context, invalidMessage string) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := uuid.Parse(id); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", invalidMessage, nil)
		return "", false
	}
	return id, true
}
