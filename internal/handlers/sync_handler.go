package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sync-party/internal/services"
)

type SyncHandler struct {
	svc *services.SessionService
}

func NewSyncHandler(svc *services.SessionService) *SyncHandler {
	return &SyncHandler{svc: svc}
}

// GetSession answers the poll loop. Expired sessions answer 410 so clients
// can tell "the room closed" apart from "invalid code".
func (h *SyncHandler) GetSession(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	sess, err := h.svc.Get(code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (h *SyncHandler) CreateSession(c *gin.Context) {
	var body struct {
		HostID string `json:"hostId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.HostID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hostId is required"})
		return
	}
	sess, err := h.svc.Create(body.HostID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":      sess.Code,
		"hostId":    sess.HostID,
		"expiresAt": sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *SyncHandler) UpdateSession(c *gin.Context) {
	var body struct {
		Code string `json:"code"`
		services.UpdateInput
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	if strings.TrimSpace(body.Code) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	sess, err := h.svc.Update(body.Code, body.UpdateInput)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (h *SyncHandler) DeleteSession(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	if err := h.svc.Delete(code); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *SyncHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, services.ErrExpired):
		c.JSON(http.StatusGone, gin.H{"error": "session expired"})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
