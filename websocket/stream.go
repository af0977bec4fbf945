package websocket

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/apex/log"
	"github.com/gorilla/websocket"

	"scan-session-service/detector"
	"scan-session-service/models"
	"scan-session-service/session"
)

// ScanStream drives one client's scanning connection. The connection owns
// the session it creates: frames are applied in arrival order by this single
// loop, and an unexpected disconnect tears the session down.
type ScanStream struct {
	conn     *websocket.Conn
	store    *session.Store
	detector detector.Detector

	// Progress is logged every logEvery frames.
	logEvery int

	sessionID  string
	frameCount int
}

// NewScanStream wraps an upgraded connection in a scan stream.
func NewScanStream(conn *websocket.Conn, store *session.Store, det detector.Detector, logEvery int) *ScanStream {
	if logEvery <= 0 {
		logEvery = 20
	}
	return &ScanStream{
		conn:     conn,
		store:    store,
		detector: det,
		logEvery: logEvery,
	}
}

// Run processes the connection until the client finalizes or disconnects.
func (s *ScanStream) Run() {
	defer s.conn.Close()

	if !s.startSession() {
		return
	}

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.handleDisconnect(err)
			return
		}

		msg, err := models.ParseClientMessage(data)
		if err != nil {
			s.send(models.ErrorMessage{Error: err.Error()})
			continue
		}

		switch m := msg.(type) {
		case models.StartMessage:
			// A fresh start abandons the connection's current session.
			s.store.Delete(s.sessionID)
			s.frameCount = 0
			if !s.startSession() {
				return
			}

		case models.FrameMessage:
			s.handleFrame(m)

		case models.FinalizeMessage:
			s.handleFinalize()
			return

		case models.PingMessage:
			s.send(models.PongMessage{Type: "pong"})
		}
	}
}

func (s *ScanStream) startSession() bool {
	id, err := s.store.Create("")
	if err != nil {
		log.Errorf("Failed to create scan session: %v", err)
		s.send(models.ErrorMessage{Error: "failed to create session"})
		return false
	}
	s.sessionID = id

	log.WithField("session_id", id).Info("Scan client connected")
	return s.send(models.ConnectedMessage{
		Type:      "connected",
		SessionID: id,
		Message:   "Ready to scan! Point camera at rooms in your property",
	})
}

func (s *ScanStream) handleFrame(m models.FrameMessage) {
	if m.Image == "" {
		s.send(models.ErrorMessage{Error: "no image data"})
		return
	}

	// Strip a data-URI header if present; the stored payload keeps it.
	encoded := m.Image
	if i := strings.IndexByte(encoded, ','); i >= 0 {
		encoded = encoded[i+1:]
	}

	var result models.DetectionResult
	imageBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		result = detector.ErrorResult("invalid base64 image data")
	} else {
		result = s.detector.Detect(context.Background(), imageBytes)
	}

	payload := ""
	if m.StoreImage {
		payload = m.Image
	}

	frame, err := s.store.AppendFrame(s.sessionID, result, payload, m.StoreImage)
	if err != nil {
		// The session was consumed out-of-band; nothing left to scan into.
		s.send(models.ErrorMessage{Error: "session not found"})
		return
	}
	s.frameCount = frame

	s.send(models.DetectionMessage{
		Type:            "detection",
		Frame:           frame,
		SessionID:       s.sessionID,
		DetectionResult: result,
	})

	if m.StoreImage && result.Success {
		log.WithFields(log.Fields{
			"session_id": s.sessionID,
			"frame":      frame,
			"room_type":  result.RoomType,
		}).Info("Photo captured")
	} else if frame%s.logEvery == 0 {
		if view, err := s.store.Get(s.sessionID); err == nil {
			log.WithFields(log.Fields{
				"session_id": s.sessionID,
				"frame":      frame,
				"amenities":  len(view.Amenities),
				"images":     view.ImagesCaptured,
			}).Info("Scan in progress")
		}
	}
}

func (s *ScanStream) handleFinalize() {
	result, err := s.store.Finalize(s.sessionID)
	if err != nil {
		s.send(models.ErrorMessage{Error: "session not found"})
		return
	}

	// The session is kept for out-of-band retrieval by the result consumer.
	s.send(models.FinalizedMessage{Type: "finalized", Data: result})

	log.WithFields(log.Fields{
		"session_id": s.sessionID,
		"frames":     result.Summary.TotalFramesProcessed,
		"amenities":  len(result.Amenities),
	}).Info("Scan session finalized")
}

func (s *ScanStream) handleDisconnect(err error) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Warnf("Scan connection error: %v", err)
	}

	log.WithFields(log.Fields{
		"session_id": s.sessionID,
		"frames":     s.frameCount,
	}).Info("Scan client disconnected")

	s.store.Delete(s.sessionID)
}

func (s *ScanStream) send(message interface{}) bool {
	if err := s.conn.WriteJSON(message); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			log.Warnf("Failed to write to scan connection: %v", err)
		}
		return false
	}
	return true
}
