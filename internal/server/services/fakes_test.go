package services

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/dbx"
	"github.com/obsync-io/obsync/internal/server/auth"
	"github.com/obsync-io/obsync/internal/server/chunkstore"
	"github.com/obsync-io/obsync/internal/server/models"
	"github.com/obsync-io/obsync/internal/server/repositories/blobs"
	"github.com/obsync-io/obsync/internal/server/repositories/cursors"
	"github.com/obsync-io/obsync/internal/server/repositories/devices"
	"github.com/obsync-io/obsync/internal/server/repositories/keyenvelopes"
	"github.com/obsync-io/obsync/internal/server/repositories/oplog"
	"github.com/obsync-io/obsync/internal/server/repositories/vaults"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

const (
	testVaultID  = "6f1e1e66-0b87-4c1a-9a62-62d954188a4e"
	testDeviceID = "0d9adee1-30fe-47b5-b08b-f1bd046a6eb3"
	testOwner    = "user-1"
)

func readerPrincipal() auth.Principal {
	return auth.Principal{UserID: testOwner, Scopes: []string{auth.ScopeRead}, AuthType: auth.AuthTypeJWT}
}

func writerPrincipal() auth.Principal {
	return auth.Principal{UserID: testOwner, Scopes: []string{auth.ScopeRead, auth.ScopeWrite}, AuthType: auth.AuthTypeJWT}
}

func adminPrincipal() auth.Principal {
	return auth.Principal{UserID: "admin-1", Scopes: []string{auth.ScopeAdmin}, AuthType: auth.AuthTypeJWT}
}

// -------- repository fakes --------

type fakeVaultsRepo struct {
	vaults.Repository
	vault     *models.Vault
	getErr    error
	lockErr   error
	locked    int
	seq       int64
	incErr    error
	created   []*models.Vault
	createErr error
	list      []*models.Vault
	listErr   error
}

func (f *fakeVaultsRepo) Get(ctx context.Context, id string) (*models.Vault, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.vault == nil || f.vault.ID != id {
		return nil, common.ErrNotFound
	}
	return f.vault, nil
}

func (f *fakeVaultsRepo) GetForUpdate(ctx context.Context, id string) (*models.Vault, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	f.locked++
	return f.Get(ctx, id)
}

func (f *fakeVaultsRepo) IncrementCurrentSeq(ctx context.Context, id string) (int64, error) {
	if f.incErr != nil {
		return 0, f.incErr
	}
	f.seq++
	return f.seq, nil
}

func (f *fakeVaultsRepo) Create(ctx context.Context, vault *models.Vault) (*models.Vault, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	vault.CreatedAt = time.Now()
	f.created = append(f.created, vault)
	return vault, nil
}

func (f *fakeVaultsRepo) ListByOwner(ctx context.Context, owner string) ([]*models.Vault, error) {
	return f.list, f.listErr
}

type fakeOpsRepo struct {
	oplog.Repository
	byKey     map[string]*models.Operation
	keyErr    error
	inserted  []*models.Operation
	insertErr error
	page      []*models.Operation
	pageErr   error
	gotSince  int64
	gotLimit  int
}

func (f *fakeOpsRepo) GetByIdempotencyKey(ctx context.Context, key string) (*models.Operation, error) {
	if f.keyErr != nil {
		return nil, f.keyErr
	}
	if op, ok := f.byKey[key]; ok {
		return op, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeOpsRepo) Insert(ctx context.Context, op *models.Operation) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	op.CreatedAt = time.Now()
	f.inserted = append(f.inserted, op)
	return nil
}

func (f *fakeOpsRepo) SelectSince(ctx context.Context, vaultID string, sinceSeq int64, limit int) ([]*models.Operation, error) {
	f.gotSince, f.gotLimit = sinceSeq, limit
	return f.page, f.pageErr
}

type cursorWrite struct {
	deviceID string
	vaultID  string
	seq      int64
	policy   cursors.Policy
}

type fakeCursorsRepo struct {
	cursors.Repository
	writes    []cursorWrite
	upsertErr error
	cursor    *models.SyncCursor
	getErr    error
}

func (f *fakeCursorsRepo) Upsert(ctx context.Context, deviceID, vaultID string, seq int64, policy cursors.Policy) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.writes = append(f.writes, cursorWrite{deviceID, vaultID, seq, policy})
	return nil
}

func (f *fakeCursorsRepo) Get(ctx context.Context, deviceID, vaultID string) (*models.SyncCursor, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.cursor == nil {
		return nil, common.ErrNotFound
	}
	return f.cursor, nil
}

type fakeDevicesRepo struct {
	devices.Repository
	touched     []string
	touchErr    error
	registered  []*models.Device
	registerErr error
	list        []*models.Device
	listErr     error
}

func (f *fakeDevicesRepo) Touch(ctx context.Context, id, owner string) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeDevicesRepo) Register(ctx context.Context, device *models.Device) (*models.Device, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	device.LastSeenAt = time.Now()
	f.registered = append(f.registered, device)
	return device, nil
}

func (f *fakeDevicesRepo) ListByOwner(ctx context.Context, owner string) ([]*models.Device, error) {
	return f.list, f.listErr
}

type fakeBlobsRepo struct {
	blobs.Repository
	manifests   map[string]*models.Blob
	manifestErr error
	getErr      error
	chunks      map[string][]*models.BlobChunk
	chunkErr    error
	countErr    error
	listErr     error
	markErr     error
	marked      []string
}

func (f *fakeBlobsRepo) UpsertManifest(ctx context.Context, blob *models.Blob) error {
	if f.manifestErr != nil {
		return f.manifestErr
	}
	if _, ok := f.manifests[blob.Hash]; !ok {
		blob.CreatedAt = time.Now()
		f.manifests[blob.Hash] = blob
	}
	return nil
}

func (f *fakeBlobsRepo) Get(ctx context.Context, hash string) (*models.Blob, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	blob, ok := f.manifests[hash]
	if !ok {
		return nil, common.ErrNotFound
	}
	return blob, nil
}

func (f *fakeBlobsRepo) UpsertChunk(ctx context.Context, chunk *models.BlobChunk) error {
	if f.chunkErr != nil {
		return f.chunkErr
	}
	list := f.chunks[chunk.BlobHash]
	for i, existing := range list {
		if existing.Index == chunk.Index {
			list[i] = chunk
			return nil
		}
	}
	f.chunks[chunk.BlobHash] = append(list, chunk)
	return nil
}

func (f *fakeBlobsRepo) CountChunks(ctx context.Context, blobHash string) (int, int64, error) {
	if f.countErr != nil {
		return 0, 0, f.countErr
	}
	var sum int64
	for _, chunk := range f.chunks[blobHash] {
		sum += chunk.Size
	}
	return len(f.chunks[blobHash]), sum, nil
}

func (f *fakeBlobsRepo) ListChunks(ctx context.Context, blobHash string) ([]*models.BlobChunk, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	list := append([]*models.BlobChunk(nil), f.chunks[blobHash]...)
	sort.Slice(list, func(i, j int) bool { return list[i].Index < list[j].Index })
	return list, nil
}

func (f *fakeBlobsRepo) GetChunk(ctx context.Context, blobHash string, index int) (*models.BlobChunk, error) {
	for _, chunk := range f.chunks[blobHash] {
		if chunk.Index == index {
			return chunk, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeBlobsRepo) MarkCommitted(ctx context.Context, hash string) error {
	if f.markErr != nil {
		return f.markErr
	}
	if blob, ok := f.manifests[hash]; ok && blob.CommittedAt == nil {
		now := time.Now()
		blob.CommittedAt = &now
	}
	f.marked = append(f.marked, hash)
	return nil
}

type fakeKeysRepo struct {
	keyenvelopes.Repository
	stored []*models.KeyEnvelope
	putErr error
	getErr error
}

func (f *fakeKeysRepo) Put(ctx context.Context, envelope *models.KeyEnvelope) error {
	if f.putErr != nil {
		return f.putErr
	}
	envelope.CreatedAt = time.Now()
	f.stored = append(f.stored, envelope)
	return nil
}

func (f *fakeKeysRepo) Get(ctx context.Context, vaultID, deviceID string, version int64) (*models.KeyEnvelope, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, e := range f.stored {
		if e.VaultID == vaultID && e.DeviceID == deviceID && e.Version == version {
			return e, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeKeysRepo) Latest(ctx context.Context, vaultID, deviceID string) (*models.KeyEnvelope, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	var best *models.KeyEnvelope
	for _, e := range f.stored {
		if e.VaultID == vaultID && e.DeviceID == deviceID && (best == nil || e.Version > best.Version) {
			best = e
		}
	}
	if best == nil {
		return nil, common.ErrNotFound
	}
	return best, nil
}

// -------- repo manager + chunk store fakes --------

type fakeRepoManager struct {
	v *fakeVaultsRepo
	o *fakeOpsRepo
	c *fakeCursorsRepo
	d *fakeDevicesRepo
	b *fakeBlobsRepo
	k *fakeKeysRepo
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (m *fakeRepoManager) Vaults(db dbx.DBTX) vaults.Repository              { return m.v }
func (m *fakeRepoManager) Ops(db dbx.DBTX) oplog.Repository                  { return m.o }
func (m *fakeRepoManager) Cursors(db dbx.DBTX) cursors.Repository            { return m.c }
func (m *fakeRepoManager) Devices(db dbx.DBTX) devices.Repository            { return m.d }
func (m *fakeRepoManager) Blobs(db dbx.DBTX) blobs.Repository                { return m.b }
func (m *fakeRepoManager) KeyEnvelopes(db dbx.DBTX) keyenvelopes.Repository  { return m.k }

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		v: &fakeVaultsRepo{vault: &models.Vault{ID: testVaultID, Owner: testOwner, Name: "main"}},
		o: &fakeOpsRepo{byKey: map[string]*models.Operation{}},
		c: &fakeCursorsRepo{},
		d: &fakeDevicesRepo{},
		b: &fakeBlobsRepo{manifests: map[string]*models.Blob{}, chunks: map[string][]*models.BlobChunk{}},
		k: &fakeKeysRepo{},
	}
}

type fakeChunkStore struct {
	written  map[string][]byte
	writeErr error
	readErr  error
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{written: map[string][]byte{}}
}

func (f *fakeChunkStore) WriteChunk(ctx context.Context, blobHash string, index int, data []byte) (string, error) {
	if f.writeErr != nil {
		return "", f.writeErr
	}
	key := chunkstore.ChunkKey(blobHash, index)
	f.written[key] = append([]byte(nil), data...)
	return key, nil
}

func (f *fakeChunkStore) ReadChunk(ctx context.Context, storageKey string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	data, ok := f.written[storageKey]
	if !ok {
		return nil, common.ErrChunkNotFound
	}
	return data, nil
}

// -------- helpers --------

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func newGate(db *sql.DB, m *fakeRepoManager) *AccessGate {
	return NewAccessGate(db, m)
}
