package realtime

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/interviewx/internal/events"
	"github.com/yoockh/interviewx/internal/models"
	"github.com/yoockh/interviewx/internal/providers/analyzer"
	"github.com/yoockh/interviewx/internal/services"
)

const (
	DefaultSampleEvery      = 5
	DefaultLowConfidence    = 60.0
	DefaultAudioFlushChunks = 10
)

// StatusReader answers get_evaluation_status.
type StatusReader interface {
	Status(ctx context.Context, userID, evaluationID string) (*models.EvaluationStatusView, error)
}

// Observer counts realtime inputs by outcome.
type Observer interface {
	ObserveRealtimeInput(kind, result string)
}

type nopObserver struct{}

func (nopObserver) ObserveRealtimeInput(string, string) {}

type Config struct {
	SampleEvery      int64
	LowConfidence    float64
	AudioFlushChunks int
	// ScratchDir holds media written for analyzer calls. Created when empty.
	ScratchDir  string
	CallTimeout time.Duration
	Language    string
}

type HubDeps struct {
	Sessions services.RealtimeService
	Status   StatusReader
	Analyzer analyzer.Provider
	Observer Observer
	Logger   *logrus.Logger
}

// Hub tracks connected sockets, the users behind them and the interview
// rooms they joined. State is process-local.
type Hub struct {
	HubDeps
	cfg         Config
	ownsScratch bool

	mu      sync.RWMutex
	clients map[*Client]struct{}
	users   map[string]map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

func NewHub(deps HubDeps, cfg Config) (*Hub, error) {
	if cfg.SampleEvery <= 0 {
		cfg.SampleEvery = DefaultSampleEvery
	}
	if cfg.LowConfidence <= 0 {
		cfg.LowConfidence = DefaultLowConfidence
	}
	if cfg.AudioFlushChunks <= 0 {
		cfg.AudioFlushChunks = DefaultAudioFlushChunks
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = analyzer.DefaultCallTimeout
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	owns := false
	if cfg.ScratchDir == "" {
		owns = true
		dir, err := os.MkdirTemp("", "interviewx-realtime-")
		if err != nil {
			return nil, err
		}
		cfg.ScratchDir = dir
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	return &Hub{
		HubDeps:     deps,
		cfg:         cfg,
		ownsScratch: owns,
		clients:     map[*Client]struct{}{},
		users:       map[string]map[*Client]struct{}{},
		rooms:       map[string]map[*Client]struct{}{},
	}, nil
}

// Connect registers a socket of userID and greets it.
func (h *Hub) Connect(userID string, emit Emitter) *Client {
	c := newClient(h, userID, emit)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	add(h.users, userID, c)
	h.mu.Unlock()

	c.emit(EventConnected, map[string]any{"userId": userID, "timestamp": time.Now().UTC()})
	return c
}

// Disconnect drops the socket from every index and destroys its sessions.
func (h *Hub) Disconnect(c *Client) {
	c.closeSessions()

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	remove(h.users, c.userID, c)
	for room := range c.joined() {
		remove(h.rooms, room, c)
	}
}

func (h *Hub) join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	add(h.rooms, room, c)
}

func (h *Hub) leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	remove(h.rooms, room, c)
}

func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

func (h *Hub) RoomSize(interviewID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[interviewID])
}

// DispatchEvaluationUpdated forwards an update to the interview room and the
// candidate's sockets. A completed evaluation ends any live session on it.
func (h *Hub) DispatchEvaluationUpdated(ev events.EvaluationUpdated) {
	h.mu.RLock()
	targets := map[*Client]struct{}{}
	for c := range h.rooms[ev.InterviewID] {
		targets[c] = struct{}{}
	}
	for c := range h.users[ev.CandidateID] {
		targets[c] = struct{}{}
	}
	h.mu.RUnlock()

	for c := range targets {
		if ev.Status == models.EvaluationCompleted {
			c.endSessionsFor(ev.EvaluationID)
		}
		c.emit(EventEvaluationUpdated, ev)
	}
}

// Close removes the scratch directory the hub created.
func (h *Hub) Close() error {
	if !h.ownsScratch {
		return nil
	}
	return os.RemoveAll(h.cfg.ScratchDir)
}

func add(idx map[string]map[*Client]struct{}, key string, c *Client) {
	set, ok := idx[key]
	if !ok {
		set = map[*Client]struct{}{}
		idx[key] = set
	}
	set[c] = struct{}{}
}

func remove(idx map[string]map[*Client]struct{}, key string, c *Client) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(idx, key)
	}
}
