package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"legalquery/internal/models"
)

type fakeProvider struct {
	stores      []models.StoreInfo
	listCalls   int
	deleted     []string
	forced      bool
	ingestStore string
	ingestPath  string
	ingestOpts  IngestOptions
	ingestErr   error
}

func (f *fakeProvider) CreateStore(_ context.Context, displayName string) (*models.StoreInfo, error) {
	info := models.StoreInfo{Name: "fileSearchStores/" + displayName, DisplayName: displayName}
	f.stores = append(f.stores, info)
	return &info, nil
}

func (f *fakeProvider) ListStores(_ context.Context) ([]models.StoreInfo, error) {
	f.listCalls++
	return f.stores, nil
}

func (f *fakeProvider) GetStore(_ context.Context, name string) (*models.StoreInfo, error) {
	for _, s := range f.stores {
		if s.Name == name {
			return &s, nil
		}
	}
	return nil, os.ErrNotExist
}

func (f *fakeProvider) DeleteStore(_ context.Context, name string, force bool) error {
	f.deleted = append(f.deleted, name)
	f.forced = force
	return nil
}

func (f *fakeProvider) IngestFile(_ context.Context, storeName, path string, opts IngestOptions) error {
	f.ingestStore = storeName
	f.ingestPath = path
	f.ingestOpts = opts
	if f.ingestErr != nil {
		return f.ingestErr
	}
	// the staged file must exist while the provider reads it
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return nil
}

func newTestService(t *testing.T, p Provider) *Service {
	t.Helper()
	return NewService(p, nil, t.TempDir(), nil)
}

func TestCreateStoreRequiresName(t *testing.T) {
	svc := newTestService(t, &fakeProvider{})
	if _, err := svc.CreateStore(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty display name")
	}
}

func TestListStoresWithoutCache(t *testing.T) {
	fake := &fakeProvider{stores: []models.StoreInfo{{Name: "fileSearchStores/a", DisplayName: "勞動法規知識庫"}}}
	svc := newTestService(t, fake)

	stores, err := svc.ListStores(context.Background())
	if err != nil {
		t.Fatalf("ListStores: %v", err)
	}
	if len(stores) != 1 || stores[0].DisplayName != "勞動法規知識庫" {
		t.Fatalf("unexpected stores: %+v", stores)
	}
	// nil cache means every call reaches the provider
	if _, err := svc.ListStores(context.Background()); err != nil {
		t.Fatalf("ListStores: %v", err)
	}
	if fake.listCalls != 2 {
		t.Fatalf("listCalls = %d, want 2", fake.listCalls)
	}
}

func TestDeleteStoreIsForced(t *testing.T) {
	fake := &fakeProvider{}
	svc := newTestService(t, fake)

	if err := svc.DeleteStore(context.Background(), "fileSearchStores/a"); err != nil {
		t.Fatalf("DeleteStore: %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != "fileSearchStores/a" {
		t.Fatalf("deleted = %v", fake.deleted)
	}
	if !fake.forced {
		t.Fatal("delete should force removal of indexed documents")
	}
}

func TestIngestFileStagesAndCleansUp(t *testing.T) {
	fake := &fakeProvider{}
	svc := newTestService(t, fake)

	err := svc.IngestFile(context.Background(), "fileSearchStores/a", "勞基法.pdf",
		strings.NewReader("%PDF-1.4 fake"), IngestOptions{MaxTokensPerChunk: 200, OverlapTokens: 20})
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if fake.ingestStore != "fileSearchStores/a" {
		t.Fatalf("ingestStore = %q", fake.ingestStore)
	}
	if fake.ingestOpts.DisplayName != "勞基法.pdf" {
		t.Fatalf("display name should default to the original filename, got %q", fake.ingestOpts.DisplayName)
	}
	if filepath.Ext(fake.ingestPath) != ".pdf" {
		t.Fatalf("staged file should keep the extension, got %q", fake.ingestPath)
	}
	if _, err := os.Stat(fake.ingestPath); !os.IsNotExist(err) {
		t.Fatalf("staged file %q should be removed after ingestion", fake.ingestPath)
	}
}

func TestIngestFileCleansUpOnProviderError(t *testing.T) {
	fake := &fakeProvider{ingestErr: os.ErrPermission}
	svc := newTestService(t, fake)

	err := svc.IngestFile(context.Background(), "fileSearchStores/a", "doc.txt",
		strings.NewReader("text"), IngestOptions{})
	if err == nil {
		t.Fatal("expected provider error")
	}
	if _, statErr := os.Stat(fake.ingestPath); !os.IsNotExist(statErr) {
		t.Fatalf("staged file %q should be removed after a failed ingestion", fake.ingestPath)
	}
}

func TestIngestFileRequiresStore(t *testing.T) {
	svc := newTestService(t, &fakeProvider{})
	if err := svc.IngestFile(context.Background(), "", "doc.txt", strings.NewReader("x"), IngestOptions{}); err == nil {
		t.Fatal("expected error for empty store name")
	}
}
