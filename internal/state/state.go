// Package state holds Spider's single process-wide runtime object: the
// hot-swappable defaults the config API can change without a restart, the
// channel ID allocator, and the per-channel chat cancellation flags the
// agentic loop checks at iteration boundaries.
package state

import (
	"sync"
	"sync/atomic"

	"github.com/haasonsaas/spider/pkg/models"
)

// RuntimeConfig holds the chat defaults exposed by GET /api/get_config and
// POST /api/update_config. It is distinct from internal/config.Config:
// that one is loaded once at process boot from YAML/env, this one is
// mutated at runtime through the HTTP API.
type RuntimeConfig struct {
	DefaultLLMProvider string
	MaxTokens          int
	Temperature        float32
}

// DefaultRuntimeConfig returns Spider's out-of-the-box chat defaults.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		DefaultLLMProvider: "anthropic",
		MaxTokens:          4096,
		Temperature:        0.7,
	}
}

// State is the single shared runtime object threaded through the gateway
// and agentic loop.
type State struct {
	mu     sync.RWMutex
	config RuntimeConfig

	nextChannelID atomic.Uint32

	cancelMu   sync.Mutex
	cancelFlag map[uint32]*models.ChatCancellation

	clientsMu sync.RWMutex
	clients   map[uint32]*models.ChatClient
}

// New creates a State seeded with the given config defaults.
func New(cfg RuntimeConfig) *State {
	return &State{
		config:     cfg,
		cancelFlag: make(map[uint32]*models.ChatCancellation),
		clients:    make(map[uint32]*models.ChatClient),
	}
}

// Config returns a copy of the current runtime config.
func (s *State) Config() RuntimeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// UpdateConfig replaces the runtime config wholesale.
func (s *State) UpdateConfig(cfg RuntimeConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// NextChannelID allocates the next WebSocket channel id.
func (s *State) NextChannelID() uint32 {
	return s.nextChannelID.Add(1)
}

// RegisterClient associates a connected WebSocket channel with its auth key
// and conversation.
func (s *State) RegisterClient(channelID uint32, client *models.ChatClient) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[channelID] = client
}

// Client returns the registered client for a channel, if any.
func (s *State) Client(channelID uint32) (*models.ChatClient, bool) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	c, ok := s.clients[channelID]
	return c, ok
}

// RemoveClient drops a channel's registered client and cancellation flag,
// called when the WebSocket connection closes.
func (s *State) RemoveClient(channelID uint32) {
	s.clientsMu.Lock()
	delete(s.clients, channelID)
	s.clientsMu.Unlock()

	s.cancelMu.Lock()
	delete(s.cancelFlag, channelID)
	s.cancelMu.Unlock()
}

// CancellationFor returns the cancellation flag for channelID, creating one
// if this is the channel's first chat request.
func (s *State) CancellationFor(channelID uint32) *models.ChatCancellation {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	c, ok := s.cancelFlag[channelID]
	if !ok {
		c = &models.ChatCancellation{}
		s.cancelFlag[channelID] = c
	}
	return c
}

// Cancel sets the cancellation flag for channelID if one has been
// allocated. Returns false if the channel has no in-flight chat.
func (s *State) Cancel(channelID uint32) bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	c, ok := s.cancelFlag[channelID]
	if !ok {
		return false
	}
	c.Cancel()
	return true
}

// ServiceRegistrar is the service-discovery registration hook named in
// Spider's external interfaces table. The actual registration side effect
// is out of scope; this interface exists so callers have a named
// extension point, backed by a logging no-op by default.
type ServiceRegistrar interface {
	Register(name, description string) error
}
