package gridsession

import (
	"fmt"
	"sort"
	"sync"

	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/domain/shared"
)

// ErrScreenNotFound is returned for an unregistered screen name
var ErrScreenNotFound = shared.NewDomainError("NOT_FOUND", "Screen not found")

// Screen describes one master/detail editing screen
type Screen struct {
	Name         string
	Title        string
	MasterSchema *grid.Schema
	DetailSchema *grid.Schema
	// NewEngine builds the transition guards for a session
	NewEngine func() *grid.Engine
	Link      grid.Link
	// NewPersistence returns the backend adapter acting on behalf of actor
	NewPersistence func(actor string) grid.Persistence
	DefaultQuery   grid.Query
}

// Validate checks that the screen can build an editor
func (s Screen) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("screen: name is required")
	case s.MasterSchema == nil || s.DetailSchema == nil:
		return fmt.Errorf("screen %s: master and detail schemas are required", s.Name)
	case s.NewPersistence == nil:
		return fmt.Errorf("screen %s: persistence factory is required", s.Name)
	}
	return nil
}

// ScreenInfo is the public description of a screen
type ScreenInfo struct {
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	MasterGrid    string   `json:"master_grid"`
	DetailGrid    string   `json:"detail_grid"`
	MasterKey     []string `json:"master_key"`
	DetailKey     []string `json:"detail_key"`
	WatchedFields []string `json:"watched_fields"`
}

// Info describes the screen
func (s Screen) Info() ScreenInfo {
	info := ScreenInfo{
		Name:       s.Name,
		Title:      s.Title,
		MasterGrid: s.MasterSchema.Name,
		DetailGrid: s.DetailSchema.Name,
		MasterKey:  s.MasterSchema.Key,
		DetailKey:  s.DetailSchema.Key,
	}
	if s.NewEngine != nil {
		info.WatchedFields = s.NewEngine().Fields()
	}
	return info
}

// Registry holds the screens sessions can be opened for
type Registry struct {
	mu      sync.RWMutex
	screens map[string]Screen
}

// NewRegistry creates a registry with screens. It panics on an invalid or
// duplicate screen.
func NewRegistry(screens ...Screen) *Registry {
	r := &Registry{screens: make(map[string]Screen)}
	for _, s := range screens {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a screen
func (r *Registry) Register(s Screen) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.screens[s.Name]; exists {
		return fmt.Errorf("screen %s already registered", s.Name)
	}
	r.screens[s.Name] = s
	return nil
}

// Lookup returns the screen registered under name
func (r *Registry) Lookup(name string) (Screen, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.screens[name]
	if !ok {
		return Screen{}, ErrScreenNotFound
	}
	return s, nil
}

// Screens returns every registered screen ordered by name
func (r *Registry) Screens() []Screen {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Screen, 0, len(r.screens))
	for _, s := range r.screens {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
