package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/internal/storage"
	"github.com/mediagallery/backend/libs/config"
)

var (
	mp4Header = []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2avc1mp41\x00\x00\x00\x08free")
	pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
)

func testStoreConfig() config.MediaStoreConfig {
	return config.MediaStoreConfig{
		CloudName:          "demo",
		APIKey:             "key",
		APISecret:          "secret",
		APIBaseURL:         "https://api.example.com",
		DeliveryBaseURL:    "https://res.example.com",
		SignatureAlgorithm: "sha1",
		SignatureTTL:       time.Hour,
	}
}

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		Folder:              "next-cloudinary-uploads",
		MaxServerUploadSize: 100 << 20,
		MaxDirectUploadSize: 670 << 20,
	}
}

// mockMediaStore is a mock implementation of MediaStore
type mockMediaStore struct {
	mu sync.Mutex

	uploadDescriptor *storage.ObjectDescriptor
	uploadErr        error
	uploadCalls      int
	uploadKind       models.ResourceKind
	uploadParams     storage.UploadParams
	uploadedBytes    []byte

	resource    *storage.ObjectDescriptor
	resourceErr error
	getCalls    int

	resources []storage.ObjectDescriptor
	listErr   error
	listMax   int

	destroyErr   error
	destroyCalls []string
}

func (m *mockMediaStore) Upload(ctx context.Context, kind models.ResourceKind, fileName string, r io.Reader, params storage.UploadParams) (*storage.ObjectDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadCalls++
	m.uploadKind = kind
	m.uploadParams = params
	m.uploadedBytes, _ = io.ReadAll(r)
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	return m.uploadDescriptor, nil
}

func (m *mockMediaStore) GetResource(ctx context.Context, kind models.ResourceKind, publicID string) (*storage.ObjectDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.resourceErr != nil {
		return nil, m.resourceErr
	}
	return m.resource, nil
}

func (m *mockMediaStore) ListResources(ctx context.Context, kind models.ResourceKind, maxResults int) ([]storage.ObjectDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listMax = maxResults
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.resources, nil
}

func (m *mockMediaStore) Destroy(ctx context.Context, kind models.ResourceKind, publicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyCalls = append(m.destroyCalls, publicID)
	return m.destroyErr
}

func (m *mockMediaStore) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploadCalls + m.getCalls + len(m.destroyCalls)
}

// mockMediaAssetRepository is a mock implementation of MediaAssetRepository
type mockMediaAssetRepository struct {
	assets       []models.MediaAsset
	createErr    error
	listErr      error
	exists       bool
	existsErr    error
	created      []*models.MediaAsset
	confirmedFor []string
}

func (m *mockMediaAssetRepository) Create(ctx context.Context, asset *models.MediaAsset) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, asset)
	return nil
}

func (m *mockMediaAssetRepository) CreateConfirmed(ctx context.Context, asset *models.MediaAsset, intentID string) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, asset)
	m.confirmedFor = append(m.confirmedFor, intentID)
	return nil
}

func (m *mockMediaAssetRepository) List(ctx context.Context) ([]models.MediaAsset, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.assets, nil
}

func (m *mockMediaAssetRepository) ExistsByRemoteObjectID(ctx context.Context, remoteObjectID string) (bool, error) {
	return m.exists, m.existsErr
}

// mockUploadIntentRepository is a mock implementation of UploadIntentRepository
type mockUploadIntentRepository struct {
	intent       *models.UploadIntent
	createErr    error
	getErr       error
	markErr      error
	claimErr     error
	expired      int64
	expireErr    error
	stale        []models.UploadIntent
	staleErr     error
	created      []*models.UploadIntent
	transitions  []models.IntentStatus
	failMessages []string
	uploadedIDs  []string
}

func (m *mockUploadIntentRepository) Create(ctx context.Context, intent *models.UploadIntent) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, intent)
	return nil
}

func (m *mockUploadIntentRepository) GetByID(ctx context.Context, id string) (*models.UploadIntent, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.intent, nil
}

func (m *mockUploadIntentRepository) MarkUploaded(ctx context.Context, id, remoteObjectID string) error {
	m.transitions = append(m.transitions, models.IntentStatusUploaded)
	m.uploadedIDs = append(m.uploadedIDs, remoteObjectID)
	return m.markErr
}

func (m *mockUploadIntentRepository) MarkFailed(ctx context.Context, id, message string) error {
	m.transitions = append(m.transitions, models.IntentStatusFailed)
	m.failMessages = append(m.failMessages, message)
	return m.markErr
}

func (m *mockUploadIntentRepository) ClaimDiscard(ctx context.Context, id string) error {
	if m.claimErr != nil {
		return m.claimErr
	}
	m.transitions = append(m.transitions, models.IntentStatusDiscarding)
	return nil
}

func (m *mockUploadIntentRepository) MarkDiscarded(ctx context.Context, id string) error {
	m.transitions = append(m.transitions, models.IntentStatusDiscarded)
	return m.markErr
}

func (m *mockUploadIntentRepository) ExpireStalePending(ctx context.Context, before time.Time, limit int) (int64, error) {
	return m.expired, m.expireErr
}

func (m *mockUploadIntentRepository) ListStaleOrphans(ctx context.Context, before time.Time, limit int) ([]models.UploadIntent, error) {
	return m.stale, m.staleErr
}

// mockDiscardEnqueuer is a mock implementation of DiscardEnqueuer
type mockDiscardEnqueuer struct {
	failFor  map[string]error
	enqueued []string
}

func (m *mockDiscardEnqueuer) EnqueueDiscard(ctx context.Context, intentID string) error {
	if err := m.failFor[intentID]; err != nil {
		return err
	}
	m.enqueued = append(m.enqueued, intentID)
	return nil
}
