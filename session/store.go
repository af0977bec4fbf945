package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"scan-session-service/models"
)

var (
	// ErrSessionExists is returned when creating a session with an id that
	// is already in use.
	ErrSessionExists = errors.New("session already exists")

	// ErrSessionNotFound is returned when an operation references an
	// unknown session id.
	ErrSessionNotFound = errors.New("session not found")
)

// scanSession holds one scan's accumulated state. Its mutex serializes all
// mutations and reads of that state; the store's lock only guards the map.
type scanSession struct {
	mu sync.Mutex

	id             string
	createdAt      time.Time
	frameCount     int
	frames         []models.FrameRecord
	amenities      map[string]struct{}
	objectCounts   map[string]int
	roomDetections map[string]int
	images         []models.CapturedImage
}

// Store holds every active scan session keyed by session id. Operations on
// different sessions never block each other beyond the brief map lookup.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*scanSession
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*scanSession),
	}
}

// Create allocates a new empty session. If id is empty a random UUID is
// assigned. An explicit id that collides with a live session is an error.
func (s *Store) Create(id string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; ok {
		return "", ErrSessionExists
	}

	s.sessions[id] = &scanSession{
		id:             id,
		createdAt:      time.Now().UTC(),
		amenities:      make(map[string]struct{}),
		objectCounts:   make(map[string]int),
		roomDetections: make(map[string]int),
	}
	return id, nil
}

// AppendFrame folds one frame's detection result into the session and
// returns the frame's number. The image payload is retained only when the
// caller flags it and the frame was successfully analyzed.
func (s *Store) AppendFrame(id string, result models.DetectionResult, imagePayload string, storeImage bool) (int, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return 0, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.fold(result, imagePayload, storeImage, time.Now().UTC()), nil
}

// Get returns the lightweight view of a session's current state.
func (s *Store) Get(id string) (*models.SessionView, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Finalize derives the aggregated scan result. It does not mutate or delete
// the session; repeated calls yield identical output apart from the
// finalization timestamp.
func (s *Store) Finalize(id string) (*models.FinalizedScan, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.finalize(time.Now().UTC()), nil
}

// Delete removes a session. Deleting an unknown or already-deleted session
// is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ActiveSessions returns lightweight views of all live sessions, ordered by
// session id.
func (s *Store) ActiveSessions() []*models.SessionView {
	s.mu.RLock()
	sessions := make([]*scanSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	views := make([]*models.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		views = append(views, sess.view())
		sess.mu.Unlock()
	}
	sort.Slice(views, func(i, j int) bool { return views[i].SessionID < views[j].SessionID })
	return views
}

func (s *Store) lookup(id string) (*scanSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}
