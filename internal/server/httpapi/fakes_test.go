package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/obsync-io/obsync/internal/logging"
	"github.com/obsync-io/obsync/internal/server/auth"
	"github.com/obsync-io/obsync/internal/server/config"
	"github.com/obsync-io/obsync/internal/server/models"
	"github.com/obsync-io/obsync/internal/server/realtime"
	"github.com/obsync-io/obsync/internal/server/services"
)

const (
	testSecret  = "handler-test-secret"
	testVaultID = "6f1e1e66-0b87-4c1a-9a62-62d954188a4e"
	testDevice  = "11111111-1111-4111-8111-111111111111"
)

func testToken(t *testing.T, scopes ...string) string {
	t.Helper()
	token, err := auth.GenerateToken("user-1", scopes, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func readToken(t *testing.T) string  { return testToken(t, auth.ScopeRead) }
func writeToken(t *testing.T) string { return testToken(t, auth.ScopeRead, auth.ScopeWrite) }

// ---- capture logger ----

type captureLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *captureLogger) record(msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	parts := []string{msg}
	for _, arg := range args {
		parts = append(parts, fmt.Sprintf("%v", arg))
	}
	l.entries = append(l.entries, strings.Join(parts, " "))
}

func (l *captureLogger) Debug(_ context.Context, msg string, args ...any) { l.record(msg, args) }
func (l *captureLogger) Info(_ context.Context, msg string, args ...any)  { l.record(msg, args) }
func (l *captureLogger) Warn(_ context.Context, msg string, args ...any)  { l.record(msg, args) }
func (l *captureLogger) Error(_ context.Context, msg string, args ...any) { l.record(msg, args) }
func (l *captureLogger) With(...any) logging.Logger                       { return l }

func (l *captureLogger) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.entries, "\n")
}

// ---- fake services ----

type fakeGate struct {
	scopeErr error
	ownerErr error
}

func (f *fakeGate) RequireScope(auth.Principal, string) error { return f.scopeErr }

func (f *fakeGate) RequireVaultOwner(_ context.Context, principal auth.Principal, vaultID string) (*models.Vault, error) {
	if f.ownerErr != nil {
		return nil, f.ownerErr
	}
	return &models.Vault{ID: vaultID, Owner: principal.UserID}, nil
}

type fakePush struct {
	resp *services.PushResult
	err  error

	gotPrincipal auth.Principal
	gotVaultID   string
	gotReq       *services.PushRequest
}

func (f *fakePush) Push(_ context.Context, principal auth.Principal, vaultID string, req *services.PushRequest) (*services.PushResult, error) {
	f.gotPrincipal = principal
	f.gotVaultID = vaultID
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakePull struct {
	pullResp *services.PullResult
	pullErr  error
	curResp  *services.CursorResult
	curErr   error

	gotVaultID string
	gotSince   int64
	gotLimit   int
	gotDevice  string
}

func (f *fakePull) Pull(_ context.Context, _ auth.Principal, vaultID string, since int64, limit int, deviceID string) (*services.PullResult, error) {
	f.gotVaultID = vaultID
	f.gotSince = since
	f.gotLimit = limit
	f.gotDevice = deviceID
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	return f.pullResp, nil
}

func (f *fakePull) Cursor(_ context.Context, _ auth.Principal, vaultID, deviceID string) (*services.CursorResult, error) {
	f.gotVaultID = vaultID
	f.gotDevice = deviceID
	if f.curErr != nil {
		return nil, f.curErr
	}
	return f.curResp, nil
}

type fakeBlobs struct {
	initResp    *services.BlobInitResult
	initErr     error
	putResp     *services.PutChunkResult
	putErr      error
	commitResp  *services.BlobCommitResult
	commitErr   error
	manifest    *services.BlobManifest
	manifestErr error
	chunk       *services.ChunkDownload
	chunkErr    error

	gotVaultID  string
	gotBlobHash string
	gotIndex    int
}

func (f *fakeBlobs) Init(_ context.Context, _ auth.Principal, vaultID string, _ *services.BlobInitRequest) (*services.BlobInitResult, error) {
	f.gotVaultID = vaultID
	if f.initErr != nil {
		return nil, f.initErr
	}
	return f.initResp, nil
}

func (f *fakeBlobs) PutChunk(_ context.Context, _ auth.Principal, vaultID, blobHash string, index int, _ *services.PutChunkRequest) (*services.PutChunkResult, error) {
	f.gotVaultID = vaultID
	f.gotBlobHash = blobHash
	f.gotIndex = index
	if f.putErr != nil {
		return nil, f.putErr
	}
	return f.putResp, nil
}

func (f *fakeBlobs) Commit(_ context.Context, _ auth.Principal, vaultID, blobHash string, _ *services.BlobCommitRequest) (*services.BlobCommitResult, error) {
	f.gotVaultID = vaultID
	f.gotBlobHash = blobHash
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	return f.commitResp, nil
}

func (f *fakeBlobs) GetManifest(_ context.Context, _ auth.Principal, vaultID, blobHash string) (*services.BlobManifest, error) {
	f.gotVaultID = vaultID
	f.gotBlobHash = blobHash
	if f.manifestErr != nil {
		return nil, f.manifestErr
	}
	return f.manifest, nil
}

func (f *fakeBlobs) GetChunk(_ context.Context, _ auth.Principal, vaultID, blobHash string, index int) (*services.ChunkDownload, error) {
	f.gotVaultID = vaultID
	f.gotBlobHash = blobHash
	f.gotIndex = index
	if f.chunkErr != nil {
		return nil, f.chunkErr
	}
	return f.chunk, nil
}

type fakeKeys struct {
	putResp *services.KeyEnvelopeRecord
	putErr  error
	getResp *services.KeyEnvelopeRecord
	getErr  error

	gotDevice  string
	gotVersion int64
}

func (f *fakeKeys) Put(_ context.Context, _ auth.Principal, _ string, _ *services.PutKeyRequest) (*services.KeyEnvelopeRecord, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	return f.putResp, nil
}

func (f *fakeKeys) Get(_ context.Context, _ auth.Principal, _, deviceID string, version int64) (*services.KeyEnvelopeRecord, error) {
	f.gotDevice = deviceID
	f.gotVersion = version
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getResp, nil
}

type fakeVaults struct {
	createResp *services.VaultRecord
	createErr  error
	list       []*services.VaultRecord
	listErr    error
}

func (f *fakeVaults) Create(_ context.Context, _ auth.Principal, _ *services.CreateVaultRequest) (*services.VaultRecord, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createResp, nil
}

func (f *fakeVaults) List(_ context.Context, _ auth.Principal) ([]*services.VaultRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

type fakeDevices struct {
	regResp *services.DeviceRecord
	regErr  error
	list    []*services.DeviceRecord
	listErr error
}

func (f *fakeDevices) Register(_ context.Context, _ auth.Principal, _ *services.RegisterDeviceRequest) (*services.DeviceRecord, error) {
	if f.regErr != nil {
		return nil, f.regErr
	}
	return f.regResp, nil
}

func (f *fakeDevices) List(_ context.Context, _ auth.Principal) ([]*services.DeviceRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

// ---- server + request helpers ----

func defaultServices() Services {
	return Services{
		Gate:    &fakeGate{},
		Push:    &fakePush{resp: &services.PushResult{MissingChunks: []services.MissingChunkRef{}}},
		Pull:    &fakePull{pullResp: &services.PullResult{Ops: []services.OpRecord{}}},
		Blobs:   &fakeBlobs{},
		Keys:    &fakeKeys{},
		Vaults:  &fakeVaults{},
		Devices: &fakeDevices{},
	}
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

func newTestServer(svcs Services) *Server {
	return NewServer(newTestConfig(), logging.Nop(), auth.NewVerifier(testSecret), svcs, realtime.NewBus(logging.Nop()))
}

func do(t *testing.T, s *Server, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return body
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return body
}
