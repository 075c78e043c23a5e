package mcp

import (
	"sync"

	"github.com/zhubert/plural-mcp/internal/config"
	"github.com/zhubert/plural-mcp/internal/model"
)

// RemoteStore forwards configuration changes to the serve process that owns
// the settings, so they are applied in the same queue as status reports.
// Reads come from a snapshot of the settings taken when it was created; the
// snapshot is updated as changes are accepted.
type RemoteStore struct {
	client   *SocketClient
	snapshot *config.Config

	mu  sync.Mutex
	err error // first failed send
}

// NewRemoteStore wraps client. snapshot is the current saved settings.
func NewRemoteStore(client *SocketClient, snapshot *config.Config) *RemoteStore {
	return &RemoteStore{client: client, snapshot: snapshot}
}

// List returns the snapshot.
func (r *RemoteStore) List() []model.MCPServer {
	return r.snapshot.List()
}

// Get returns a server from the snapshot.
func (r *RemoteStore) Get(id string) *model.MCPServer {
	return r.snapshot.Get(id)
}

// Upsert sends the server to serve. Errors are kept for Err.
func (r *RemoteStore) Upsert(server model.MCPServer) {
	if !r.ok(r.client.SendUpsert(server)) {
		return
	}
	if current := r.snapshot.Get(server.ID); current != nil {
		server.Status = current.Status
	}
	r.snapshot.Upsert(server)
}

// Remove asks serve to remove the server. Returns false if it is not in the
// snapshot or the request failed.
func (r *RemoteStore) Remove(id string) bool {
	if r.snapshot.Get(id) == nil {
		return false
	}
	if !r.ok(r.client.SendRemove(id)) {
		return false
	}
	return r.snapshot.Remove(id)
}

// ResetStatus asks serve to put the server back to connecting.
func (r *RemoteStore) ResetStatus(id string) bool {
	if r.snapshot.Get(id) == nil {
		return false
	}
	if !r.ok(r.client.SendReset(id)) {
		return false
	}
	return r.snapshot.ResetStatus(id)
}

// Err returns the first error from a forwarded change.
func (r *RemoteStore) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close closes the connection to serve.
func (r *RemoteStore) Close() error {
	return r.client.Close()
}

func (r *RemoteStore) ok(err error) bool {
	if err == nil {
		return true
	}
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
	return false
}
