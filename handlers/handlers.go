package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

	"scan-session-service/config"
	"scan-session-service/database"
	"scan-session-service/detector"
	"scan-session-service/models"
	"scan-session-service/rabbitmq"
	"scan-session-service/session"
	"scan-session-service/version"
	ws "scan-session-service/websocket"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	cfg      *config.Config
	store    *session.Store
	detector detector.Detector

	// Optional collaborators; nil when not configured.
	archive *database.Archive
	events  *rabbitmq.Publisher
}

// NewHandlers creates a new handlers instance
func NewHandlers(cfg *config.Config, store *session.Store, det detector.Detector, archive *database.Archive, events *rabbitmq.Publisher) *Handlers {
	return &Handlers{
		cfg:      cfg,
		store:    store,
		detector: det,
		archive:  archive,
		events:   events,
	}
}

// WebSocket upgrader
var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Scanning clients connect from arbitrary origins (kiosk pages,
		// mobile webviews); origin enforcement happens at the gateway.
		return true
	},
}

// ScanStream handles WebSocket connections for live property scanning
func (h *Handlers) ScanStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}
	conn.SetReadLimit(h.cfg.MaxFrameBytes)

	stream := ws.NewScanStream(conn, h.store, h.detector, h.cfg.FrameLogInterval)
	go stream.Run()
}

// GetSession returns the lightweight view of an in-progress scan session
func (h *Handlers) GetSession(c *gin.Context) {
	view, err := h.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

// FinalizeSession computes the aggregated scan result without deleting the
// session, so a decoupled consumer can still retrieve it
func (h *Handlers) FinalizeSession(c *gin.Context) {
	result, err := h.store.Finalize(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// RetrieveSession is the one-shot consume handoff: it finalizes the session
// if needed, returns the result and deletes the session
func (h *Handlers) RetrieveSession(c *gin.Context) {
	sessionID := c.Param("id")

	result, err := h.store.Finalize(sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to finalize session"})
		return
	}

	if h.archive != nil {
		if err := h.archive.SaveFinalizedScan(c.Request.Context(), result); err != nil {
			log.Errorf("Failed to archive scan %s: %v", sessionID, err)
		}
	}

	if h.events != nil {
		event := models.ScanFinalizedEvent{
			Type:        "scan.finalized",
			SessionID:   result.SessionID,
			FinalizedAt: result.FinalizedAt,
			Summary:     result.Summary,
			Amenities:   result.Amenities,
		}
		if err := h.events.Publish(event); err != nil {
			log.Errorf("Failed to publish scan.finalized for %s: %v", sessionID, err)
		}
	}

	h.store.Delete(sessionID)

	log.WithFields(log.Fields{
		"session_id": sessionID,
		"frames":     result.Summary.TotalFramesProcessed,
	}).Info("Scan result consumed")

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// ActiveSessions lists all live sessions for internal diagnostics
func (h *Handlers) ActiveSessions(c *gin.Context) {
	views := h.store.ActiveSessions()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(views),
		"sessions": views,
	})
}

// HealthCheck returns the service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"service":         "scan-session-service",
		"version":         version.Version,
		"active_sessions": h.store.Len(),
		"time":            time.Now().UTC().Format(time.RFC3339),
	})
}
