package app

import (
	"lydistories/pkg/storage"
	"lydistories/pkg/store"
)

// App carries the service's business logic. Handlers stay thin and
// delegate here; storage access goes through the store interfaces so
// tests can run against the in-memory implementation.
type App struct {
	store    store.Store
	sessions store.SessionStore
	objects  storage.ObjectStore
}

// New wires an App. objects may be nil, in which case file uploads
// (covers, PDFs, avatars) are disabled and the corresponding fields
// stay empty.
func New(st store.Store, sessions store.SessionStore, objects storage.ObjectStore) *App {
	return &App{store: st, sessions: sessions, objects: objects}
}
