package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"legalquery/internal/config"
	"legalquery/internal/export"
	"legalquery/internal/identity"
	"legalquery/internal/models"
	"legalquery/internal/service/assistant"
	"legalquery/internal/service/chat"
	"legalquery/internal/service/knowledge"
)

const storeNamePrefix = "fileSearchStores/"

// SessionDefaults fills in session settings the create request omits.
type SessionDefaults struct {
	ModelName       string
	SystemPrompt    string
	SecurityEnabled bool
}

// Handler wires HTTP routes to the chat, persistence and knowledge services.
type Handler struct {
	assistant *assistant.Service
	chat      *chat.Service
	knowledge *knowledge.Service
	identity  *identity.Resolver
	defaults  SessionDefaults
	logger    *zap.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(store *assistant.Service, chatSvc *chat.Service, knowledgeSvc *knowledge.Service, resolver *identity.Resolver, defaults SessionDefaults, logger *zap.Logger) *Handler {
	return &Handler{
		assistant: store,
		chat:      chatSvc,
		knowledge: knowledgeSvc,
		identity:  resolver,
		defaults:  defaults,
		logger:    logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.Use(h.identity.Middleware())

	api.GET("/stores", h.listStores)
	api.GET("/stats", h.getStatistics)

	api.POST("/sessions", h.createSession)
	api.GET("/sessions", h.listSessions)
	api.GET("/sessions/:id", h.getSession)
	api.PATCH("/sessions/:id", h.renameSession)
	api.POST("/sessions/:id/end", h.endSession)
	api.DELETE("/sessions/:id", h.deleteSession)
	api.POST("/sessions/:id/messages", h.askQuestion)
	api.GET("/sessions/:id/messages", h.getSessionMessages)
	api.GET("/sessions/:id/warnings", h.getSessionWarnings)
	api.GET("/sessions/:id/export", h.exportSession)

	admin := api.Group("/admin")
	admin.GET("/stores", h.listStores)
	admin.POST("/stores", h.createStore)
	admin.GET("/stores/:store", h.getStore)
	admin.DELETE("/stores/:store", h.deleteStore)
	admin.POST("/stores/:store/files", h.uploadFile)
	admin.GET("/sessions", h.listSessionSummaries)
	admin.GET("/users", h.listUserStatistics)
}

// ---- sessions ----

type createSessionRequest struct {
	Name              string `json:"name"`
	KnowledgeBase     string `json:"knowledge_base"`
	ModelName         string `json:"model_name"`
	SystemPrompt      string `json:"system_prompt"`
	UseMetadataFilter bool   `json:"use_metadata_filter"`
	MetadataFilter    string `json:"metadata_filter"`
	SecurityEnabled   *bool  `json:"security_enabled"`
}

func (h *Handler) createSession(c *gin.Context) {
	user, ok := identity.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user not resolved"})
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.KnowledgeBase == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "knowledge_base is required"})
		return
	}

	settings := models.SessionSettings{
		ModelName:         req.ModelName,
		SystemPrompt:      req.SystemPrompt,
		UseMetadataFilter: req.UseMetadataFilter,
		MetadataFilter:    req.MetadataFilter,
		SecurityEnabled:   h.defaults.SecurityEnabled,
	}
	if settings.ModelName == "" {
		settings.ModelName = h.defaults.ModelName
	}
	if settings.ModelName == "" {
		settings.ModelName = config.DefaultModel
	}
	if settings.SystemPrompt == "" {
		settings.SystemPrompt = h.defaults.SystemPrompt
	}
	if req.SecurityEnabled != nil {
		settings.SecurityEnabled = *req.SecurityEnabled
	}

	session, err := h.assistant.CreateSession(c.Request.Context(), user.ID, req.Name, req.KnowledgeBase, settings)
	if err != nil {
		h.logger.Error("create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *Handler) listSessions(c *gin.Context) {
	user, ok := identity.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user not resolved"})
		return
	}
	sessions, err := h.assistant.ListSessions(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("list sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) getSession(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}
	settings, err := h.assistant.GetSessionSettings(c.Request.Context(), session.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		h.logger.Error("get session settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "settings": settings})
}

type renameSessionRequest struct {
	Name string `json:"name"`
}

func (h *Handler) renameSession(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}
	var req renameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if err := h.assistant.RenameSession(c.Request.Context(), session.ID, req.Name); err != nil {
		h.respondStoreError(c, "rename session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "renamed"})
}

func (h *Handler) endSession(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}
	if err := h.assistant.EndSession(c.Request.Context(), session.ID); err != nil {
		h.respondStoreError(c, "end session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func (h *Handler) deleteSession(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}
	if err := h.assistant.DeleteSession(c.Request.Context(), session.ID); err != nil {
		h.respondStoreError(c, "delete session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ---- conversation ----

type askRequest struct {
	Query string `json:"query"`
}

func (h *Handler) askQuestion(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	result, err := h.chat.Ask(c.Request.Context(), session.ID, req.Query)
	if err != nil {
		if errors.Is(err, assistant.ErrSessionEnded) {
			c.JSON(http.StatusConflict, gin.H{"error": "session has ended"})
			return
		}
		h.logger.Error("ask", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process query"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) getSessionMessages(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}
	messages, err := h.assistant.ListMessages(c.Request.Context(), session.ID)
	if err != nil {
		h.logger.Error("list messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) getSessionWarnings(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}
	warnings, err := h.assistant.ListWarnings(c.Request.Context(), session.ID)
	if err != nil {
		h.logger.Error("list warnings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list warnings"})
		return
	}
	if warnings == nil {
		warnings = []models.SecurityWarning{}
	}
	c.JSON(http.StatusOK, gin.H{"warnings": warnings})
}

func (h *Handler) exportSession(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	settings, err := h.assistant.GetSessionSettings(ctx, session.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		h.respondStoreError(c, "export session", err)
		return
	}
	messages, err := h.assistant.ListMessages(ctx, session.ID)
	if err != nil {
		h.respondStoreError(c, "export session", err)
		return
	}
	warnings, err := h.assistant.ListWarnings(ctx, session.ID)
	if err != nil {
		h.respondStoreError(c, "export session", err)
		return
	}

	data, err := export.Build(session, settings, messages, warnings).Encode()
	if err != nil {
		h.logger.Error("encode export", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export session"})
		return
	}
	filename := fmt.Sprintf("conversation_%d.json", session.ID)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

// ---- statistics ----

func (h *Handler) getStatistics(c *gin.Context) {
	stats, err := h.assistant.Statistics(c.Request.Context())
	if err != nil {
		h.logger.Error("statistics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) listSessionSummaries(c *gin.Context) {
	summaries, err := h.assistant.ListSessionSummaries(c.Request.Context())
	if err != nil {
		h.logger.Error("list session summaries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	if summaries == nil {
		summaries = []models.SessionSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": summaries})
}

func (h *Handler) listUserStatistics(c *gin.Context) {
	stats, err := h.assistant.ListUserStatistics(c.Request.Context())
	if err != nil {
		h.logger.Error("list user statistics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	if stats == nil {
		stats = []models.UserStatistics{}
	}
	c.JSON(http.StatusOK, gin.H{"users": stats})
}

// ---- knowledge stores ----

func (h *Handler) listStores(c *gin.Context) {
	stores, err := h.knowledge.ListStores(c.Request.Context())
	if err != nil {
		h.logger.Error("list stores", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list stores"})
		return
	}
	if stores == nil {
		stores = []models.StoreInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

type createStoreRequest struct {
	DisplayName string `json:"display_name"`
}

func (h *Handler) createStore(c *gin.Context) {
	var req createStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.DisplayName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "display_name is required"})
		return
	}
	info, err := h.knowledge.CreateStore(c.Request.Context(), req.DisplayName)
	if err != nil {
		h.logger.Error("create store", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create store"})
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (h *Handler) getStore(c *gin.Context) {
	info, err := h.knowledge.GetStore(c.Request.Context(), storeName(c))
	if err != nil {
		h.logger.Error("get store", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load store"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) deleteStore(c *gin.Context) {
	if err := h.knowledge.DeleteStore(c.Request.Context(), storeName(c)); err != nil {
		h.logger.Error("delete store", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to delete store"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// uploadFile ingests one multipart file into the store. Optional form
// fields: display_name, max_tokens_per_chunk, overlap_tokens, and metadata
// as a JSON object of string values.
func (h *Handler) uploadFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	opts := knowledge.IngestOptions{DisplayName: c.PostForm("display_name")}
	if v := c.PostForm("max_tokens_per_chunk"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_tokens_per_chunk"})
			return
		}
		opts.MaxTokensPerChunk = int32(n)
	}
	if v := c.PostForm("overlap_tokens"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid overlap_tokens"})
			return
		}
		opts.OverlapTokens = int32(n)
	}
	if v := c.PostForm("metadata"); v != "" {
		if err := json.Unmarshal([]byte(v), &opts.Metadata); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid metadata"})
			return
		}
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	defer src.Close()

	if err := h.knowledge.IngestFile(c.Request.Context(), storeName(c), fileHeader.Filename, src, opts); err != nil {
		h.logger.Error("ingest file",
			zap.String("store", storeName(c)), zap.String("file", fileHeader.Filename), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to ingest file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ingested", "file": fileHeader.Filename})
}

// ---- helpers ----

// ownedSession loads the :id session and enforces that it belongs to the
// resolved user. Foreign sessions read as not found.
func (h *Handler) ownedSession(c *gin.Context) (*models.Session, bool) {
	user, ok := identity.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user not resolved"})
		return nil, false
	}
	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return nil, false
	}
	session, err := h.assistant.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return nil, false
		}
		h.logger.Error("get session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return nil, false
	}
	if session.UserID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return session, true
}

func (h *Handler) respondStoreError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, assistant.ErrSessionEnded):
		c.JSON(http.StatusConflict, gin.H{"error": "session has ended"})
	default:
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// storeName rebuilds the full provider resource name from the short path id.
func storeName(c *gin.Context) string {
	id := c.Param("store")
	if strings.HasPrefix(id, storeNamePrefix) {
		return id
	}
	return storeNamePrefix + id
}
