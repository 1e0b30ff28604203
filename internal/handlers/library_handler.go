package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sync-party/internal/services"
)

type LibraryHandler struct {
	svc *services.LibraryService
}

func NewLibraryHandler(svc *services.LibraryService) *LibraryHandler {
	return &LibraryHandler{svc: svc}
}

// GetTracks lists the library, or a single track when ?id= is present.
func (h *LibraryHandler) GetTracks(c *gin.Context) {
	if id := strings.TrimSpace(c.Query("id")); id != "" {
		track, err := h.svc.Get(id)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, track)
		return
	}
	tracks, err := h.svc.List()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tracks)
}

func (h *LibraryHandler) AddTrack(c *gin.Context) {
	var body services.AddTrackInput
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	track, err := h.svc.Add(body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, track)
}

func (h *LibraryHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTrackNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "track not found"})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
