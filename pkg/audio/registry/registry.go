// Package registry keeps the audio backends compiled into the binary.
// Backends register themselves from init().
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xaionaro-go/noisecancel/pkg/audio/types"
)

type PlayerPCMFactory interface {
	NewPlayerPCM() (types.PlayerPCM, error)
}

type RecorderPCMFactory interface {
	NewRecorderPCM() (types.RecorderPCM, error)
}

// Entry is a registered backend factory.
type Entry[F any] struct {
	Name     string
	Priority int
	Factory  F
}

type registry[F any] struct {
	kind    string
	locker  sync.Mutex
	entries map[string]Entry[F]
}

func (r *registry[F]) register(name string, priority int, factory F) {
	r.locker.Lock()
	defer r.locker.Unlock()
	if name == "" {
		panic(fmt.Errorf("a %s backend should have a name", r.kind))
	}
	if _, ok := r.entries[name]; ok {
		panic(fmt.Errorf("there is already registered a %s backend named '%s'", r.kind, name))
	}
	if r.entries == nil {
		r.entries = map[string]Entry[F]{}
	}
	r.entries[name] = Entry[F]{
		Name:     name,
		Priority: priority,
		Factory:  factory,
	}
}

// sorted returns the entries from the highest priority to the lowest.
func (r *registry[F]) sorted() []Entry[F] {
	r.locker.Lock()
	defer r.locker.Unlock()
	result := make([]Entry[F], 0, len(r.entries))
	for _, entry := range r.entries {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].Name < result[j].Name
	})
	return result
}

func (r *registry[F]) get(name string) (Entry[F], bool) {
	r.locker.Lock()
	defer r.locker.Unlock()
	entry, ok := r.entries[name]
	return entry, ok
}

var (
	players   = &registry[PlayerPCMFactory]{kind: "player"}
	recorders = &registry[RecorderPCMFactory]{kind: "recorder"}
)

func RegisterPlayerFactory(name string, priority int, factory PlayerPCMFactory) {
	players.register(name, priority, factory)
}

func RegisterRecorderFactory(name string, priority int, factory RecorderPCMFactory) {
	recorders.register(name, priority, factory)
}

// PlayerFactories returns the player backends, the most preferred first.
func PlayerFactories() []Entry[PlayerPCMFactory] {
	return players.sorted()
}

// RecorderFactories returns the recorder backends, the most preferred first.
func RecorderFactories() []Entry[RecorderPCMFactory] {
	return recorders.sorted()
}

func PlayerFactory(name string) (Entry[PlayerPCMFactory], bool) {
	return players.get(name)
}

func RecorderFactory(name string) (Entry[RecorderPCMFactory], bool) {
	return recorders.get(name)
}
