// Package frameid assigns stable small-integer ordinals to frame ids within
// one page lifetime and produces the "<ordinal>-<backendNodeId>" encoded ids
// that identify accessibility nodes across the service.
//
// Encoded ids are an intra-snapshot currency: backend node ids are unique
// only within one page lifetime, so encoded ids are not stable across
// reloads. The xpath map is the stable bridge.
package frameid

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Registry maps frame ids to ordinals for one page. The empty frame id is
// the top frame and is always ordinal 0.
type Registry struct {
	mu       sync.Mutex
	ordinals map[string]int
}

// NewRegistry returns a registry seeded with the top-frame entry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.seed()
	return r
}

func (r *Registry) seed() {
	r.ordinals = map[string]int{"": 0}
}

// Ordinal returns the ordinal for frameID, interning it on first sighting.
// The first real frame id becomes 1, the second 2, and so on. Ordinals are
// monotone within one page lifetime; the mapping never shrinks except via
// Reset.
func (r *Registry) Ordinal(frameID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ord, ok := r.ordinals[frameID]; ok {
		return ord
	}
	ord := len(r.ordinals)
	r.ordinals[frameID] = ord
	return ord
}

// Encode returns the encoded id "<ordinal>-<backendID>" for a node.
func (r *Registry) Encode(frameID string, backendID int) string {
	return fmt.Sprintf("%d-%d", r.Ordinal(frameID), backendID)
}

// Reset reinitialises the registry with only the top-frame entry. Called
// exactly when a new top-frame id is observed on (re)navigation.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seed()
}

// Len reports the number of interned frames, including the top frame.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ordinals)
}

// Decode splits an encoded id into its frame ordinal and backend node id.
func Decode(encodedID string) (ordinal, backendID int, err error) {
	head, tail, ok := strings.Cut(encodedID, "-")
	if !ok {
		return 0, 0, fmt.Errorf("frameid: malformed encoded id %q", encodedID)
	}
	ordinal, err = strconv.Atoi(head)
	if err != nil {
		return 0, 0, fmt.Errorf("frameid: malformed ordinal in %q", encodedID)
	}
	backendID, err = strconv.Atoi(tail)
	if err != nil {
		return 0, 0, fmt.Errorf("frameid: malformed backend id in %q", encodedID)
	}
	return ordinal, backendID, nil
}
