package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopinsight/shopinsight/internal/catalog"
	"github.com/shopinsight/shopinsight/internal/export"
	"github.com/shopinsight/shopinsight/internal/llm"
	"github.com/shopinsight/shopinsight/internal/session"
	"go.uber.org/zap"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SessionView is the API representation of a session. The catalog rows
// are summarized rather than returned.
type SessionView struct {
	ID            string            `json:"id"`
	Model         string            `json:"model"`
	SystemPrompt  string            `json:"system_prompt"`
	CatalogName   string            `json:"catalog_name"`
	ItemCount     int               `json:"item_count"`
	CategoryCount int               `json:"category_count"`
	Context       string            `json:"context"`
	History       []session.Message `json:"history"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func newSessionView(s *session.Session) SessionView {
	view := SessionView{
		ID:           s.ID,
		Model:        s.Model,
		SystemPrompt: s.SystemPrompt,
		CatalogName:  s.CatalogName,
		ItemCount:    s.Catalog.Len(),
		Context:      s.Context,
		History:      s.Transcript(),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if summary, err := catalog.Summarize(s.Catalog); err == nil {
		view.CategoryCount = len(summary.Categories)
	}
	return view
}

type settingsRequest struct {
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

type askResponse struct {
	Answer  string      `json:"answer"`
	Session SessionView `json:"session"`
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Code: status, Message: "success", Data: data})
}

func failure(c *gin.Context, status int, message string, err error) {
	resp := Response{Code: status, Message: message}
	if err != nil {
		resp.Error = err.Error()
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	success(c, http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSuggestions(c *gin.Context) {
	success(c, http.StatusOK, gin.H{"questions": llm.Suggestions(0)})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req settingsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	model := s.opts.DefaultModel
	if req.Model != "" {
		if !s.hasModel(req.Model) {
			failure(c, http.StatusBadRequest, "unknown model", fmt.Errorf("model %q is not configured", req.Model))
			return
		}
		model = req.Model
	}
	prompt := s.opts.SystemPrompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt
	}

	sess := session.New(session.Options{Model: model, SystemPrompt: prompt})
	s.loadDefaultCatalog(sess)

	if err := s.opts.Store.Save(c.Request.Context(), sess); err != nil {
		failure(c, http.StatusInternalServerError, "failed to save session", err)
		return
	}
	success(c, http.StatusCreated, newSessionView(sess))
}

func (s *Server) handleListSessions(c *gin.Context) {
	ids, err := s.opts.Store.List(c.Request.Context())
	if err != nil {
		failure(c, http.StatusInternalServerError, "failed to list sessions", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	success(c, http.StatusOK, gin.H{"sessions": ids})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.loadSession(c)
	if !ok {
		return
	}
	success(c, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	err := s.opts.Store.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		failure(c, http.StatusNotFound, "session not found", err)
		return
	}
	if err != nil {
		failure(c, http.StatusInternalServerError, "failed to delete session", err)
		return
	}
	success(c, http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Model != "" && !s.hasModel(req.Model) {
		failure(c, http.StatusBadRequest, "unknown model", fmt.Errorf("model %q is not configured", req.Model))
		return
	}

	sess, ok := s.loadSession(c)
	if !ok {
		return
	}
	if req.Model != "" {
		sess.Model = req.Model
	}
	if req.SystemPrompt != "" {
		sess.SystemPrompt = req.SystemPrompt
	}
	if !s.saveSession(c, sess) {
		return
	}
	success(c, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleUploadCatalog(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		failure(c, http.StatusBadRequest, "missing upload field \"file\"", err)
		return
	}
	if header.Size > s.opts.MaxUploadBytes {
		failure(c, http.StatusRequestEntityTooLarge, "file too large",
			fmt.Errorf("%s exceeds the %d byte limit", header.Filename, s.opts.MaxUploadBytes))
		return
	}

	sess, ok := s.loadSession(c)
	if !ok {
		return
	}

	f, err := header.Open()
	if err != nil {
		failure(c, http.StatusBadRequest, "failed to open upload", err)
		return
	}
	defer f.Close()

	table, err := catalog.Load(header.Filename, f)
	if errors.Is(err, catalog.ErrUnsupportedFormat) {
		failure(c, http.StatusBadRequest, "unsupported file format", err)
		return
	}
	if err != nil {
		failure(c, http.StatusBadRequest, "failed to read catalog", err)
		return
	}

	sess.SetCatalog(header.Filename, table)
	if !s.saveSession(c, sess) {
		return
	}
	s.logger.Info("catalog uploaded",
		zap.String("session", sess.ID),
		zap.String("file", header.Filename),
		zap.Int("rows", sess.Catalog.Len()),
	)
	success(c, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleReloadCatalog(c *gin.Context) {
	sess, ok := s.loadSession(c)
	if !ok {
		return
	}
	s.loadDefaultCatalog(sess)
	if !s.saveSession(c, sess) {
		return
	}
	success(c, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleGetContext(c *gin.Context) {
	sess, ok := s.loadSession(c)
	if !ok {
		return
	}
	success(c, http.StatusOK, gin.H{"catalog_name": sess.CatalogName, "context": sess.Context})
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "question is required", err)
		return
	}

	sess, ok := s.loadSession(c)
	if !ok {
		return
	}

	answer, err := s.opts.Asker.Ask(c.Request.Context(), sess, req.Question)
	if errors.Is(err, llm.ErrEmptyQuestion) {
		failure(c, http.StatusBadRequest, "question is required", err)
		return
	}
	if err != nil {
		failure(c, http.StatusBadGateway, "failed to get a response from the language model", err)
		return
	}
	if !s.saveSession(c, sess) {
		return
	}
	success(c, http.StatusOK, askResponse{Answer: answer, Session: newSessionView(sess)})
}

func (s *Server) handleExport(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		failure(c, http.StatusBadRequest, "invalid export format", err)
		return
	}

	sess, ok := s.loadSession(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, sess.Transcript()); err != nil {
		failure(c, http.StatusInternalServerError, "failed to export chat history", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=chat_history.%s", format))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (s *Server) loadSession(c *gin.Context) (*session.Session, bool) {
	sess, err := s.opts.Store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		failure(c, http.StatusNotFound, "session not found", err)
		return nil, false
	}
	if err != nil {
		failure(c, http.StatusInternalServerError, "failed to load session", err)
		return nil, false
	}
	return sess, true
}

func (s *Server) saveSession(c *gin.Context, sess *session.Session) bool {
	if err := s.opts.Store.Save(c.Request.Context(), sess); err != nil {
		failure(c, http.StatusInternalServerError, "failed to save session", err)
		return false
	}
	return true
}

// loadDefaultCatalog falls back to an empty table when the default catalog
// cannot be loaded, leaving the warning in the session context.
func (s *Server) loadDefaultCatalog(sess *session.Session) {
	if s.opts.DefaultCatalog == nil {
		sess.SetCatalog("", &catalog.Table{})
		return
	}
	name, table, err := s.opts.DefaultCatalog()
	if err != nil {
		s.logger.Warn("failed to load default catalog", zap.Error(err))
		sess.SetCatalog("", &catalog.Table{})
		return
	}
	sess.SetCatalog(name, table)
}

func (s *Server) hasModel(name string) bool {
	return slices.Contains(s.opts.Models, name)
}
