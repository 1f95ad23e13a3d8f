package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"legalquery/internal/models"
	"legalquery/internal/redis"
)

const (
	storeListCacheKey = "knowledge:stores"
	storeListCacheTTL = 60 * time.Second
)

// Service fronts the store provider with a short-lived list cache and a
// staging directory for uploads. The cache only ever delays visibility of
// new stores by storeListCacheTTL; mutations invalidate it.
type Service struct {
	provider   Provider
	cache      *redis.Client
	stagingDir string
	logger     *zap.Logger
}

func NewService(provider Provider, cache *redis.Client, stagingDir string, logger *zap.Logger) *Service {
	return &Service{provider: provider, cache: cache, stagingDir: stagingDir, logger: logger}
}

func (s *Service) CreateStore(ctx context.Context, displayName string) (*models.StoreInfo, error) {
	if displayName == "" {
		return nil, errors.New("display name is required")
	}
	info, err := s.provider.CreateStore(ctx, displayName)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	return info, nil
}

func (s *Service) ListStores(ctx context.Context) ([]models.StoreInfo, error) {
	if cached, err := s.cache.Get(ctx, storeListCacheKey); err == nil {
		var stores []models.StoreInfo
		if err := json.Unmarshal([]byte(cached), &stores); err == nil {
			return stores, nil
		}
	}

	stores, err := s.provider.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(stores); err == nil {
		if err := s.cache.Set(ctx, storeListCacheKey, string(data), storeListCacheTTL); err != nil && s.logger != nil {
			s.logger.Warn("cache store list", zap.Error(err))
		}
	}
	return stores, nil
}

func (s *Service) GetStore(ctx context.Context, name string) (*models.StoreInfo, error) {
	if name == "" {
		return nil, errors.New("store name is required")
	}
	return s.provider.GetStore(ctx, name)
}

// DeleteStore removes the store and everything indexed in it.
func (s *Service) DeleteStore(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("store name is required")
	}
	if err := s.provider.DeleteStore(ctx, name, true); err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

// IngestFile stages the upload on local disk, hands it to the provider and
// removes the staged copy whether or not ingestion succeeded.
func (s *Service) IngestFile(ctx context.Context, storeName, filename string, r io.Reader, opts IngestOptions) error {
	if storeName == "" {
		return errors.New("store name is required")
	}
	if opts.DisplayName == "" {
		opts.DisplayName = filename
	}

	path, err := s.stage(filename, r)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(path); err != nil && s.logger != nil {
			s.logger.Warn("remove staged file", zap.String("path", path), zap.Error(err))
		}
	}()

	if err := s.provider.IngestFile(ctx, storeName, path, opts); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("file ingested",
			zap.String("store", storeName),
			zap.String("file", opts.DisplayName))
	}
	return nil
}

func (s *Service) stage(filename string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	name := uuid.NewString() + filepath.Ext(filename)
	path := filepath.Join(s.stagingDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close staged file: %w", err)
	}
	return path, nil
}

func (s *Service) invalidateCache(ctx context.Context) {
	if err := s.cache.Del(ctx, storeListCacheKey); err != nil && s.logger != nil {
		s.logger.Warn("invalidate store list cache", zap.Error(err))
	}
}
