// Package storagetest provides an in-memory storage.Gateway for tests.
package storagetest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/d4rkfella/db-backup/internal/pkg/storage"
)

// Gateway is an in-memory folder store with injectable failures.
type Gateway struct {
	mu sync.Mutex

	objects map[string]entry
	nextID  int

	// AccessErr, ListErr and UploadErr fail the corresponding call when set.
	AccessErr error
	ListErr   error
	UploadErr error
	// DeleteErrs fails deletion of specific object IDs.
	DeleteErrs map[string]error
	// IgnoreCreatedBefore makes ListObjects return every object in the
	// folder, as a misbehaving backend would.
	IgnoreCreatedBefore bool
	// HasMore is reported on every listing, as a backend with further pages would.
	HasMore bool
	// Now stamps uploaded objects. Defaults to time.Now.
	Now func() time.Time

	AccessChecks int
	ListCalls    int
	DeleteCalls  []string
	Uploads      []Upload
}

// Upload records one UploadObject call.
type Upload struct {
	FolderID string
	Name     string
	MimeType string
	Data     []byte
}

type entry struct {
	folder   string
	mimeType string
	object   storage.Object
}

var _ storage.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{objects: map[string]entry{}, DeleteErrs: map[string]error{}}
}

// Seed stores an object directly and returns its ID.
func (g *Gateway) Seed(folderID, name, mimeType string, created time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.add(folderID, name, mimeType, created, 0)
}

// SeedObject stores an object with an explicit ID, which may be empty.
func (g *Gateway) SeedObject(folderID, mimeType string, obj storage.Object) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := obj.ID
	if key == "" {
		g.nextID++
		key = fmt.Sprintf("unnamed-%d", g.nextID)
	}
	g.objects[key] = entry{folder: folderID, mimeType: mimeType, object: obj}
}

func (g *Gateway) add(folderID, name, mimeType string, created time.Time, size int64) string {
	g.nextID++
	id := fmt.Sprintf("obj-%d", g.nextID)
	g.objects[id] = entry{
		folder:   folderID,
		mimeType: mimeType,
		object:   storage.Object{ID: id, Name: name, CreatedTime: created, Size: size},
	}
	return id
}

// Names lists the names of the objects currently stored in a folder.
func (g *Gateway) Names(folderID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var names []string
	for _, e := range g.objects {
		if e.folder == folderID {
			names = append(names, e.object.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (g *Gateway) Name() string { return "fake" }

func (g *Gateway) VerifyFolderAccess(_ context.Context, folderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.AccessChecks++
	if g.AccessErr != nil {
		return &storage.AccessError{Folder: folderID, Err: g.AccessErr}
	}
	return nil
}

func (g *Gateway) ListObjects(_ context.Context, query storage.ListQuery) (storage.Listing, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ListCalls++
	if g.ListErr != nil {
		return storage.Listing{}, g.ListErr
	}

	var out []storage.Object
	for _, e := range g.objects {
		if e.folder != query.FolderID {
			continue
		}
		if query.MimeType != "" && e.mimeType != query.MimeType {
			continue
		}
		if !g.IgnoreCreatedBefore && !query.CreatedBefore.IsZero() && !e.object.CreatedTime.Before(query.CreatedBefore) {
			continue
		}
		out = append(out, e.object)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedTime.Before(out[j].CreatedTime) })
	more := g.HasMore
	if len(out) > query.Limit() {
		out = out[:query.Limit()]
		more = true
	}
	return storage.Listing{Objects: out, HasMore: more}, nil
}

func (g *Gateway) DeleteObject(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.DeleteCalls = append(g.DeleteCalls, id)
	if err := g.DeleteErrs[id]; err != nil {
		return &storage.DeleteError{ID: id, Err: err}
	}
	if _, ok := g.objects[id]; !ok {
		return &storage.DeleteError{ID: id, Err: fmt.Errorf("not found")}
	}
	delete(g.objects, id)
	return nil
}

func (g *Gateway) UploadObject(_ context.Context, folderID, name, mimeType string, body io.Reader) (storage.Object, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.Object{}, &storage.UploadError{Name: name, Err: err}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.Uploads = append(g.Uploads, Upload{FolderID: folderID, Name: name, MimeType: mimeType, Data: data})
	if g.UploadErr != nil {
		return storage.Object{}, &storage.UploadError{Name: name, Err: g.UploadErr}
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	id := g.add(folderID, name, mimeType, now(), int64(len(data)))
	return g.objects[id].object, nil
}
