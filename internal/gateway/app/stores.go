package app

import (
	"fmt"
	"log"

	"nmrdeposit/internal/gateway/config"
	"nmrdeposit/internal/gateway/repository/entrystore"
	"nmrdeposit/internal/gateway/repository/upload"
)

type gatewayStores struct {
	entries entrystore.Store
	uploads upload.Store
	closers []func() error
}

func initStores(cfg *config.Config) (*gatewayStores, error) {
	stores := &gatewayStores{}

	origin, err := chooseEntryStore(cfg.Store, stores)
	if err != nil {
		return nil, err
	}
	cached, err := entrystore.NewCachedStore(origin, cfg.Store.CacheSize)
	if err != nil {
		return nil, err
	}
	stores.entries = cached

	uploads, err := chooseUploadStore(cfg.Upload)
	if err != nil {
		return nil, err
	}
	stores.uploads = uploads
	return stores, nil
}

func chooseEntryStore(cfg config.StoreConfig, stores *gatewayStores) (entrystore.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		s, err := entrystore.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres entry store: %w", err)
		}
		stores.closers = append(stores.closers, s.Close)
		log.Printf("entry store: postgres")
		return s, nil
	case cfg.SQLitePath != "":
		s, err := entrystore.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite entry store: %w", err)
		}
		stores.closers = append(stores.closers, s.Close)
		log.Printf("entry store: sqlite path=%s", cfg.SQLitePath)
		return s, nil
	default:
		log.Printf("entry store: json file path=%s", cfg.FilePath)
		return entrystore.NewFileStore(cfg.FilePath), nil
	}
}

func chooseUploadStore(cfg config.UploadConfig) (upload.Store, error) {
	if !cfg.CanUseS3() {
		if cfg.Enabled {
			log.Printf("upload store: using in-memory fallback (s3 config incomplete)")
		}
		return upload.NewMemoryStore(), nil
	}
	s, err := upload.NewS3Store(upload.S3Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload s3 store: %w", err)
	}
	log.Printf("upload store: s3 bucket=%s endpoint=%s", cfg.Bucket, cfg.Endpoint)
	return s, nil
}
