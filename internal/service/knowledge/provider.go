package knowledge

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"legalquery/internal/models"
)

// IngestOptions controls how an uploaded file is chunked and tagged.
// Zero chunking values mean the provider default.
type IngestOptions struct {
	DisplayName       string
	MaxTokensPerChunk int32
	OverlapTokens     int32
	Metadata          map[string]string
}

// Provider is the knowledge-store backend. The genai-backed implementation
// is GeminiProvider; tests substitute fakes.
type Provider interface {
	CreateStore(ctx context.Context, displayName string) (*models.StoreInfo, error)
	ListStores(ctx context.Context) ([]models.StoreInfo, error)
	GetStore(ctx context.Context, name string) (*models.StoreInfo, error)
	DeleteStore(ctx context.Context, name string, force bool) error
	IngestFile(ctx context.Context, storeName, path string, opts IngestOptions) error
}

// GeminiProvider manages file search stores through the Gemini API.
type GeminiProvider struct {
	client       *genai.Client
	pollInterval time.Duration
}

func NewGeminiProvider(client *genai.Client) *GeminiProvider {
	return &GeminiProvider{client: client, pollInterval: 2 * time.Second}
}

func (p *GeminiProvider) CreateStore(ctx context.Context, displayName string) (*models.StoreInfo, error) {
	store, err := p.client.FileSearchStores.Create(ctx, &genai.CreateFileSearchStoreConfig{
		DisplayName: displayName,
	})
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	return storeInfo(store), nil
}

func (p *GeminiProvider) ListStores(ctx context.Context) ([]models.StoreInfo, error) {
	var stores []models.StoreInfo
	for store, err := range p.client.FileSearchStores.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list stores: %w", err)
		}
		stores = append(stores, *storeInfo(store))
	}
	return stores, nil
}

func (p *GeminiProvider) GetStore(ctx context.Context, name string) (*models.StoreInfo, error) {
	store, err := p.client.FileSearchStores.Get(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("get store %s: %w", name, err)
	}
	return storeInfo(store), nil
}

func (p *GeminiProvider) DeleteStore(ctx context.Context, name string, force bool) error {
	err := p.client.FileSearchStores.Delete(ctx, name, &genai.DeleteFileSearchStoreConfig{
		Force: &force,
	})
	if err != nil {
		return fmt.Errorf("delete store %s: %w", name, err)
	}
	return nil
}

// IngestFile uploads a staged file into the store and blocks until the
// indexing operation finishes. Polling is context-aware but the operation
// itself is never cancelled server-side.
func (p *GeminiProvider) IngestFile(ctx context.Context, storeName, path string, opts IngestOptions) error {
	cfg := &genai.UploadToFileSearchStoreConfig{DisplayName: opts.DisplayName}
	if opts.MaxTokensPerChunk > 0 {
		cfg.ChunkingConfig = &genai.ChunkingConfig{
			WhiteSpaceConfig: &genai.WhiteSpaceConfig{
				MaxTokensPerChunk: genai.Ptr(opts.MaxTokensPerChunk),
				MaxOverlapTokens:  genai.Ptr(opts.OverlapTokens),
			},
		}
	}
	for key, value := range opts.Metadata {
		cfg.CustomMetadata = append(cfg.CustomMetadata, &genai.CustomMetadata{
			Key:         key,
			StringValue: value,
		})
	}

	op, err := p.client.FileSearchStores.UploadToFileSearchStoreFromPath(ctx, path, storeName, cfg)
	if err != nil {
		return fmt.Errorf("upload to store %s: %w", storeName, err)
	}

	for !op.Done {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for ingestion: %w", ctx.Err())
		case <-time.After(p.pollInterval):
		}
		op, err = p.client.Operations.GetUploadToFileSearchStoreOperation(ctx, op, nil)
		if err != nil {
			return fmt.Errorf("poll ingestion operation: %w", err)
		}
	}
	if op.Error != nil {
		return fmt.Errorf("ingestion failed: %v", op.Error["message"])
	}
	return nil
}

func storeInfo(store *genai.FileSearchStore) *models.StoreInfo {
	info := &models.StoreInfo{
		Name:        store.Name,
		DisplayName: store.DisplayName,
	}
	if !store.CreateTime.IsZero() {
		info.CreateTime = store.CreateTime
	}
	info.ActiveDocuments = store.ActiveDocumentsCount
	return info
}
