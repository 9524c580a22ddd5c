// Package resregistry implements the resource registry capability: typed
// resources plus a directory tree of registration entries, persisted through
// the datastore capability when one is bound.
package resregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ion-foundation/capability-container/capabilities/datastore"
	"github.com/ion-foundation/capability-container/internal/capability"
	"github.com/ion-foundation/capability-container/internal/logging"
)

// ClassRef identifies this capability to the factory registry.
const ClassRef = "ion.resregistry.ResourceRegistry"

// DatastoreField is the RuntimeContext field the registry resolves its
// datastore dependency from.
const DatastoreField = "datastore"

// Resource is one registered resource record.
type Resource struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// DirEntry is one directory registration under a path.
type DirEntry struct {
	Path       string            `json:"path"`
	Key        string            `json:"key"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Registry holds container resources and directory entries.
type Registry struct {
	log *logging.Logger
	ds  *datastore.Manager

	mu   sync.RWMutex
	byID map[string]Resource
	dirs map[string]map[string]DirEntry // path -> key -> entry
}

// New returns an unstarted resource registry. ds may be nil for a purely
// in-memory registry.
func New(ds *datastore.Manager, log *logging.Logger) *Registry {
	return &Registry{
		log:  log.WithComponent("resregistry"),
		ds:   ds,
		byID: make(map[string]Resource),
		dirs: make(map[string]map[string]DirEntry),
	}
}

// Constructor resolves the datastore dependency from the RuntimeContext. The
// manifest must start the datastore capability first.
func Constructor(log *logging.Logger) capability.Constructor {
	return func(ctx context.Context, rc *capability.RuntimeContext) (capability.Instance, error) {
		inst, ok := rc.GetByField(DatastoreField)
		if !ok {
			return nil, fmt.Errorf("datastore capability not bound under field %q", DatastoreField)
		}
		ds, ok := inst.(*datastore.Manager)
		if !ok {
			return nil, fmt.Errorf("field %q holds %T, not a datastore manager", DatastoreField, inst)
		}
		return New(ds, log), nil
	}
}

// Start seeds the default directory structure.
func (r *Registry) Start(ctx context.Context) error {
	for _, e := range []DirEntry{
		{Path: "/", Key: "Agents", Attributes: map[string]string{"description": "Running agents"}},
		{Path: "/", Key: "Config", Attributes: map[string]string{"description": "System configuration"}},
		{Path: "/", Key: "System", Attributes: map[string]string{"description": "System management information"}},
		{Path: "/System", Key: "Locks", Attributes: map[string]string{"description": "System exclusive locks"}},
	} {
		if err := r.RegisterDirEntry(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Stop is a no-op; state lives in the datastore.
func (r *Registry) Stop(ctx context.Context) error { return nil }

// RegisterResource stores a resource and returns its ID.
func (r *Registry) RegisterResource(ctx context.Context, res Resource) (string, error) {
	if res.Type == "" {
		return "", fmt.Errorf("resource type is required")
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	res.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	r.byID[res.ID] = res
	r.mu.Unlock()

	r.persist(ctx, "resource/"+res.ID, res)
	return res.ID, nil
}

// Get returns a resource by ID.
func (r *Registry) Get(id string) (Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byID[id]
	return res, ok
}

// FindByType returns all resources of the given type.
func (r *Registry) FindByType(resType string) []Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Resource
	for _, res := range r.byID {
		if res.Type == resType {
			out = append(out, res)
		}
	}
	return out
}

// RegisterDirEntry records a directory entry under its path.
func (r *Registry) RegisterDirEntry(ctx context.Context, e DirEntry) error {
	if e.Path == "" || e.Key == "" {
		return fmt.Errorf("directory entry needs path and key")
	}

	r.mu.Lock()
	keys, ok := r.dirs[e.Path]
	if !ok {
		keys = make(map[string]DirEntry)
		r.dirs[e.Path] = keys
	}
	keys[e.Key] = e
	r.mu.Unlock()

	r.persist(ctx, "dir"+e.Path+"/"+e.Key, e)
	return nil
}

// Lookup returns the directory entry at path/key.
func (r *Registry) Lookup(path, key string) (DirEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys, ok := r.dirs[path]
	if !ok {
		return DirEntry{}, false
	}
	e, ok := keys[key]
	return e, ok
}

// persist writes through to the datastore, best effort.
func (r *Registry) persist(ctx context.Context, key string, v any) {
	if r.ds == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		r.log.WithError(err).Warnf("marshal %s for persistence", key)
		return
	}
	if err := r.ds.Put(ctx, key, data); err != nil {
		r.log.WithError(err).Warnf("persist %s", key)
	}
}
