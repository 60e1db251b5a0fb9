package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spookyvision/semver-server/internal/log"
	"github.com/spookyvision/semver-server/internal/pubsub"
	"github.com/spookyvision/semver-server/internal/semver"
)

// Event describes a repository mutation, published on the repository's
// event broker after the mutation has been applied.
type Event struct {
	Name    string
	Version semver.SemVer
}

// Repository maps crate names to crates and persists the mapping as a
// JSON snapshot at a store path. All operations are safe for concurrent
// use; the transport layer serves connections concurrently.
type Repository struct {
	mu     sync.RWMutex
	crates map[string]*Crate
	store  string
	closed bool
	events *pubsub.Broker[Event]
}

// snapshot is the persisted file layout: the full crates mapping plus the
// store path, round-tripped symmetrically through load and save.
type snapshot struct {
	Crates map[string]*Crate `json:"crates"`
	Store  string            `json:"store"`
}

// Open loads a repository from the snapshot at store. Any failure to
// read or decode the snapshot (missing file, corrupt JSON) yields an
// empty repository bound to the same store path; Open never fails.
func Open(store string) *Repository {
	repo := &Repository{
		crates: make(map[string]*Crate),
		store:  store,
		events: pubsub.NewBroker[Event](),
	}

	data, err := os.ReadFile(store) //nolint:gosec // G304: store path comes from config
	if err != nil {
		log.Debug(log.CatStore, "no snapshot to load, starting empty", "store", store, "reason", err)
		return repo
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn(log.CatStore, "snapshot unreadable, starting empty", "store", store, "reason", err)
		return repo
	}

	if snap.Crates != nil {
		repo.crates = snap.Crates
	}
	log.Info(log.CatStore, "snapshot loaded", "store", store, "crates", len(repo.crates))
	return repo
}

// Store returns the snapshot path the repository is bound to.
func (r *Repository) Store() string {
	return r.store
}

// Events returns the broker publishing crate mutations.
// CreatedEvent marks a new crate, UpdatedEvent a new release.
func (r *Repository) Events() pubsub.Subscriber[Event] {
	return r.events
}

// Len returns the number of crates in the repository.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.crates)
}

// FindExact looks up a crate by its exact, case-sensitive name.
// An absent name is not an error; the second return reports presence.
func (r *Repository) FindExact(name string) (Crate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	crt, ok := r.crates[name]
	if !ok {
		return Crate{}, false
	}
	return crt.clone(), true
}

// FindContaining returns every crate whose lower-cased name contains the
// lower-cased query. The empty query matches all crates. Result order is
// unspecified; callers must treat the result as a set.
func (r *Repository) FindContaining(query string) []Crate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	queryLower := strings.ToLower(query)
	var res []Crate
	for name, crt := range r.crates {
		if strings.Contains(strings.ToLower(name), queryLower) {
			res = append(res, crt.clone())
		}
	}
	return res
}

// AddCrate admits a new crate with its first release. The initial version
// is always accepted: a fresh crate's history is empty, so there is
// nothing for it to be out of order with. Fails with ErrAlreadyExists if
// the name is taken, leaving the existing crate untouched.
func (r *Repository) AddCrate(metadata Metadata, version semver.SemVer) error {
	if metadata.Name == "" {
		return fmt.Errorf("crate name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.crates[metadata.Name]; exists {
		return ErrAlreadyExists
	}

	crt := NewCrate(metadata)
	if err := crt.AddRelease(version); err != nil {
		// unreachable: an empty history accepts any version
		return err
	}
	r.crates[metadata.Name] = crt

	log.Info(log.CatRegistry, "crate added", "name", metadata.Name, "version", version)
	r.events.Publish(pubsub.CreatedEvent, Event{Name: metadata.Name, Version: version})
	return nil
}

// AddRelease appends a release to an existing crate. Fails with
// ErrNotFound for an unknown name, or ErrInvalidVersion when the version
// does not strictly exceed the crate's latest release.
func (r *Repository) AddRelease(name string, version semver.SemVer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	crt, ok := r.crates[name]
	if !ok {
		return ErrNotFound
	}
	if err := crt.AddRelease(version); err != nil {
		return err
	}

	log.Info(log.CatRegistry, "release added", "name", name, "version", version)
	r.events.Publish(pubsub.UpdatedEvent, Event{Name: name, Version: version})
	return nil
}

// Close writes the snapshot to the store path and shuts down the event
// broker. It must be called exactly once when the repository's owning
// scope ends; additional calls are no-ops. The write is
// truncate-then-write within this call; a failure is returned for the
// caller to report but the repository is still considered closed.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if n := r.events.Dropped(); n > 0 {
		log.Warn(log.CatRegistry, "slow event subscribers missed mutations", "dropped", n)
	}
	r.events.Close()

	data, err := json.Marshal(snapshot{Crates: r.crates, Store: r.store})
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(r.store, data, 0o644); err != nil { //nolint:gosec // G306: snapshot is not a secret
		return fmt.Errorf("writing snapshot: %w", err)
	}

	log.Info(log.CatStore, "snapshot saved", "store", r.store, "crates", len(r.crates))
	return nil
}
