package service

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/luolu1/tg-drive/internal/domain/model"
	"github.com/luolu1/tg-drive/internal/events"
	"github.com/luolu1/tg-drive/internal/repository"
)

// --- Mock-репозитории ---

type mockFileRepo struct {
	insertFn              func(ctx context.Context, f *model.FileDescriptor) error
	getByIDFn             func(ctx context.Context, id int64) (*model.FileDescriptor, error)
	getByRemoteUniqueIDFn func(ctx context.Context, uid string) (*model.FileDescriptor, error)
	getByContentHashFn    func(ctx context.Context, hash string) (*model.FileDescriptor, error)
	lockByIDFn            func(ctx context.Context, id int64) error
	listFn                func(ctx context.Context, filter model.FileFilter) ([]*model.FileDescriptor, error)
	deleteFn              func(ctx context.Context, id int64) error
}

func (m *mockFileRepo) Insert(ctx context.Context, f *model.FileDescriptor) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, f)
	}
	return nil
}

func (m *mockFileRepo) GetByID(ctx context.Context, id int64) (*model.FileDescriptor, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) GetByRemoteUniqueID(ctx context.Context, uid string) (*model.FileDescriptor, error) {
	if m.getByRemoteUniqueIDFn != nil {
		return m.getByRemoteUniqueIDFn(ctx, uid)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) GetByContentHash(ctx context.Context, hash string) (*model.FileDescriptor, error) {
	if m.getByContentHashFn != nil {
		return m.getByContentHashFn(ctx, hash)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) LockByID(ctx context.Context, id int64) error {
	if m.lockByIDFn != nil {
		return m.lockByIDFn(ctx, id)
	}
	return nil
}

func (m *mockFileRepo) List(ctx context.Context, filter model.FileFilter) ([]*model.FileDescriptor, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockFileRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockShareRepo struct {
	createFn              func(ctx context.Context, s *model.ShareRecord) error
	getByIDFn             func(ctx context.Context, id int64) (*model.ShareRecord, error)
	getByTokenFn          func(ctx context.Context, tok string) (*model.ShareRecord, error)
	revokeFn              func(ctx context.Context, id int64) error
	revokeActiveForFileFn func(ctx context.Context, fileID int64, now time.Time) (int64, error)
	firstActiveForFileFn  func(ctx context.Context, fileID int64, now time.Time) (*model.ShareRecord, error)
	listByFilesFn         func(ctx context.Context, ids []int64) (map[int64][]*model.ShareRecord, error)
}

func (m *mockShareRepo) Create(ctx context.Context, s *model.ShareRecord) error {
	if m.createFn != nil {
		return m.createFn(ctx, s)
	}
	return nil
}

func (m *mockShareRepo) GetByID(ctx context.Context, id int64) (*model.ShareRecord, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockShareRepo) GetByToken(ctx context.Context, tok string) (*model.ShareRecord, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, tok)
	}
	return nil, repository.ErrNotFound
}

func (m *mockShareRepo) Revoke(ctx context.Context, id int64) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, id)
	}
	return nil
}

func (m *mockShareRepo) RevokeActiveForFile(ctx context.Context, fileID int64, now time.Time) (int64, error) {
	if m.revokeActiveForFileFn != nil {
		return m.revokeActiveForFileFn(ctx, fileID, now)
	}
	return 0, nil
}

func (m *mockShareRepo) FirstActiveForFile(ctx context.Context, fileID int64, now time.Time) (*model.ShareRecord, error) {
	if m.firstActiveForFileFn != nil {
		return m.firstActiveForFileFn(ctx, fileID, now)
	}
	return nil, repository.ErrNotFound
}

func (m *mockShareRepo) ListByFiles(ctx context.Context, ids []int64) (map[int64][]*model.ShareRecord, error) {
	if m.listByFilesFn != nil {
		return m.listByFilesFn(ctx, ids)
	}
	return map[int64][]*model.ShareRecord{}, nil
}

// fakeTransactor выполняет fn с заданными репозиториями без реальной транзакции.
type fakeTransactor struct {
	repos repository.Repos
	calls int
}

func (f *fakeTransactor) WithinTx(_ context.Context, fn func(repos repository.Repos) error) error {
	f.calls++
	return fn(f.repos)
}

// recordingPublisher запоминает опубликованные события.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// --- Mock внешнего хранилища ---

type fakeHost struct {
	uploadFn  func(ctx context.Context, filename, contentType string, body io.Reader) (*model.RemoteBlob, error)
	resolveFn func(ctx context.Context, handle string) (string, error)
	fetchFn   func(ctx context.Context, path, rangeHeader string) (*http.Response, error)
	listenFn  func(ctx context.Context, handle func(context.Context, model.RemoteBlob) error) error
}

func (h *fakeHost) Name() string       { return "fake" }
func (h *fakeHost) HashPrefix() string { return "fkuid" }

func (h *fakeHost) Upload(ctx context.Context, filename, contentType string, body io.Reader) (*model.RemoteBlob, error) {
	return h.uploadFn(ctx, filename, contentType, body)
}

func (h *fakeHost) ResolvePath(ctx context.Context, handle string) (string, error) {
	return h.resolveFn(ctx, handle)
}

func (h *fakeHost) Fetch(ctx context.Context, path, rangeHeader string) (*http.Response, error) {
	return h.fetchFn(ctx, path, rangeHeader)
}

func (h *fakeHost) Listen(ctx context.Context, handle func(context.Context, model.RemoteBlob) error) error {
	return h.listenFn(ctx, handle)
}
