package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"github.com/shinyyama/goodfinds-backend/internal/config"
	"github.com/shinyyama/goodfinds-backend/internal/db"
	"github.com/shinyyama/goodfinds-backend/internal/logging"
	"github.com/shinyyama/goodfinds-backend/internal/model"
	"github.com/shinyyama/goodfinds-backend/internal/repository"
	"github.com/shinyyama/goodfinds-backend/internal/storage"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

type imagesConfig struct {
	StorageBucket   string `env:"STORAGE_BUCKET,required"`
	CredentialsFile string `env:"STORAGE_CREDENTIALS_FILE"`
	TimeoutSeconds  int    `env:"TIMEOUT_SECONDS" envDefault:"300"`
	ForceSeed       bool   `env:"FORCE_SEED" envDefault:"false"`
}

const placeholderPrefix = "https://picsum.photos/"

func main() {
	_ = godotenv.Load()
	log := logging.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	var icfg imagesConfig
	if err := env.Parse(&icfg); err != nil {
		log.Fatalf("failed to parse env: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(icfg.TimeoutSeconds)*time.Second)
	defer cancel()

	gdb, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	var opts []option.ClientOption
	if icfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(icfg.CredentialsFile))
	}
	uploader, err := storage.NewUploader(ctx, icfg.StorageBucket, opts...)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer uploader.Close()

	if err := updateListingImages(ctx, icfg, gdb, uploader); err != nil {
		log.Fatalf("update listing images failed: %v", err)
	}
	log.Info("seed-images completed successfully")
}

type imageTarget struct {
	ID       string
	OwnerUID string
}

// selectImageTargets returns available listings that still show a placeholder photo, or every
// available listing when force is set. Claimed listings are never touched.
func selectImageTargets(ctx context.Context, gdb *gorm.DB, force bool) ([]imageTarget, error) {
	var targets []imageTarget
	q := gdb.WithContext(ctx).Model(&model.Listing{}).
		Select("id", "owner_uid").
		Where("status = ?", model.ListingStatusAvailable)
	if !force {
		q = q.Where("EXISTS (SELECT 1 FROM listing_images i WHERE i.listing_id = listings.id AND i.image_url LIKE ?)", placeholderPrefix+"%")
	}
	if err := q.Order("created_at, id").Find(&targets).Error; err != nil {
		return nil, err
	}
	return targets, nil
}

// attachImage swaps the listing's photos for imageURL while it is still available. It reports false
// when the listing was claimed or removed in the meantime.
func attachImage(ctx context.Context, store repository.Store, t imageTarget, imageURL string) (bool, error) {
	attached := false
	err := store.Transaction(ctx, func(tx repository.Store) error {
		n, err := tx.Listings().UpdateIfAvailable(ctx, t.ID, t.OwnerUID, map[string]interface{}{"updated_at": time.Now()})
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		attached = true
		return tx.Listings().ReplaceImages(ctx, t.ID, []string{imageURL})
	})
	if err != nil {
		return false, err
	}
	return attached, nil
}

// updateListingImages re-hosts each listing's placeholder photo in the bucket. With FORCE_SEED every
// available listing gets a fresh upload.
func updateListingImages(ctx context.Context, cfg imagesConfig, gdb *gorm.DB, uploader *storage.Uploader) error {
	log := logging.Logger()
	targets, err := selectImageTargets(ctx, gdb, cfg.ForceSeed)
	if err != nil {
		return err
	}
	log.Infof("update mode: target listings=%d (force=%v)", len(targets), cfg.ForceSeed)

	store := repository.NewStore(gdb)
	for _, t := range targets {
		entry := log.WithFields(logrus.Fields{"listing_id": t.ID})
		data, err := fetchPlaceholder(ctx, t.ID)
		if err != nil {
			entry.WithError(err).Warn("placeholder fetch failed")
			continue
		}
		publicURL, err := uploader.Upload(ctx, storage.ListingObjectPath(t.ID, 0), "image/jpeg", data)
		if err != nil {
			entry.WithError(err).Warn("upload failed")
			continue
		}
		attached, err := attachImage(ctx, store, t, publicURL)
		if err != nil {
			entry.WithError(err).Warn("db update failed")
			continue
		}
		if !attached {
			entry.Info("listing no longer available, skipped")
			continue
		}
		entry.WithField("url", publicURL).Info("image updated")
	}
	return nil
}

func fetchPlaceholder(ctx context.Context, seed string) ([]byte, error) {
	u := fmt.Sprintf("%sseed/%s/800/600", placeholderPrefix, url.PathEscape(seed))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("placeholder status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("placeholder content type %q", ct)
	}
	return io.ReadAll(resp.Body)
}
