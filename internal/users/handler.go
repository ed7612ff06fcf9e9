package users

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docflow-backend/internal/access"
	"docflow-backend/internal/documents"
	"docflow-backend/internal/shared/query"
	"docflow-backend/internal/shared/server/middleware"
	"docflow-backend/internal/shared/server/respond"
)

const (
	msgInvalidUserID = "Invalid User ID"
	msgLoggedOut     = "Successfully logged out"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterPublicRoutes attaches the unauthenticated signup and login routes.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/signup", h.signup)
	rg.POST("/auth/login", h.login)
}

// RegisterRoutes attaches account routes to an authenticated router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	admins := middleware.RequireRoles(access.RoleAdmin)

	rg.GET("/auth/profile", h.profile)
	rg.GET("/auth/logout", h.logout)
	rg.GET("/users/all", admins, h.list)
	rg.GET("/users/me/documents", middleware.RequireRoles(access.RoleAdmin, access.RoleEditor), h.myDocuments)
	rg.GET("/users/:id", admins, h.details)
	rg.PATCH("/users/:id", admins, h.updateRole)
	rg.DELETE("/users/:id", admins, h.remove)
}

type signupRequest struct {
	FullName string `json:"fullName" binding:"required,min=3,max=100"`
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required,min=8,max=30"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type roleRequest struct {
	Role string `json:"role" binding:"required,oneof=editor viewer"`
}

type listQuery struct {
	FullName  string `form:"fullName" binding:"omitempty,max=50"`
	Email     string `form:"email" binding:"omitempty,max=100"`
	Role      string `form:"role"`
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

// roles parses the comma separated role filter, dropping duplicates.
func (q listQuery) roles() ([]access.Role, bool) {
	var out []access.Role
	for _, raw := range query.SplitList(q.Role) {
		role, ok := access.ParseRole(raw)
		if !ok {
			return nil, false
		}
		if !slices.Contains(out, role) {
			out = append(out, role)
		}
	}
	return out, true
}

type listResponse struct {
	Data       []gin.H `json:"data"`
	TotalCount int     `json:"totalCount"`
	TotalPages int     `json:"totalPages"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
}

type signupResponse struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

type profileResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
	Role     string `json:"role"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Invalid(c, err)
		return
	}
	res, err := h.Svc.Signup(c.Request.Context(), SignupInput{FullName: req.FullName, Email: req.Email, Password: req.Password})
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Created(c, signupResponse{ID: res.ID, Role: string(res.Role)})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Invalid(c, err)
		return
	}
	token, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, loginResponse{AccessToken: token})
}

func (h *Handler) profile(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	prof, err := h.Svc.Profile(c.Request.Context(), p.UserID)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toProfileResponse(prof))
}

// logout only acknowledges the request. Access tokens stay valid until they expire.
func (h *Handler) logout(c *gin.Context) {
	respond.Text(c, http.StatusOK, msgLoggedOut)
}

func (h *Handler) list(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respond.Invalid(c, err)
		return
	}
	roles, ok := q.roles()
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid role", nil)
		return
	}
	res, err := h.Svc.List(c.Request.Context(), ListFilter{
		FullName:  q.FullName,
		Email:     q.Email,
		Roles:     roles,
		Scope:     q.scope(),
		Select:    query.SplitList(q.Select),
		Page:      q.Page,
		Limit:     q.Limit,
		SortOrder: query.ParseSortOrder(q.SortOrder),
	})
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toListResponse(res))
}

func (h *Handler) myDocuments(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	withPath := false
	if raw := c.Query("needToIncludeFilePath"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "needToIncludeFilePath must be a boolean", nil)
			return
		}
		withPath = v
	}
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	res, err := h.Svc.Documents(c.Request.Context(), p.UserID, withPath, page, limit)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, documents.ToListResponse(res))
}

func (h *Handler) details(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	prof, err := h.Svc.Details(c.Request.Context(), id)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toProfileResponse(prof))
}

func (h *Handler) updateRole(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Invalid(c, err)
		return
	}
	msg, err := h.Svc.UpdateRole(c.Request.Context(), id, access.Role(req.Role))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Text(c, http.StatusOK, msg)
}

func (h *Handler) remove(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	msg, err := h.Svc.SoftDelete(c.Request.Context(), id)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Text(c, http.StatusOK, msg)
}

func userID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", msgInvalidUserID, nil)
		return "", false
	}
	return id, true
}

func toProfileResponse(p Profile) profileResponse {
	return profileResponse{ID: p.ID, Email: p.Email, FullName: p.FullName, Role: string(p.Role)}
}

func toListResponse(res ListResult) listResponse {
	data := make([]gin.H, 0, len(res.Items))
	for _, u := range res.Items {
		data = append(data, projectJSON(u, res.Fields))
	}
	return listResponse{
		Data:       data,
		TotalCount: res.TotalCount,
		TotalPages: res.TotalPages,
		Page:       res.Page,
		Limit:      res.Limit,
	}
}

func projectJSON(u User, fields []string) gin.H {
	out := make(gin.H, len(fields))
	for _, field := range fields {
		switch field {
		case "id":
			out[field] = u.ID
		case "email":
			out[field] = u.Email
		case "fullName":
			out[field] = u.FullName
		case "role":
			out[field] = string(u.Role)
		case "lastLoginAt":
			out[field] = u.LastLoginAt
		case "createdAt":
			out[field] = u.CreatedAt
		case "updatedAt":
			out[field] = u.UpdatedAt
		case "deletedAt":
			out[field] = u.DeletedAt
		}
	}
	return out
}
