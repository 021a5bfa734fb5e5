package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"github.com/shinyyama/goodfinds-backend/internal/config"
	"github.com/shinyyama/goodfinds-backend/internal/db"
	"github.com/shinyyama/goodfinds-backend/internal/logging"
	"github.com/shinyyama/goodfinds-backend/internal/model"
	"github.com/shinyyama/goodfinds-backend/internal/repository"
	"github.com/shinyyama/goodfinds-backend/internal/service"
	"gorm.io/gorm"
)

type seedConfig struct {
	ForceSeed      bool   `env:"FORCE_SEED" envDefault:"false"`
	SampleItemsDir string `env:"SAMPLE_ITEMS_DIR"`
}

const seedOwnerPrefix = "seed-user-"

var categories = []model.Category{
	{Slug: "furniture", Name: "Furniture"},
	{Slug: "kitchen", Name: "Kitchen & Dining"},
	{Slug: "fashion", Name: "Clothing & Accessories"},
	{Slug: "electronics", Name: "Electronics"},
	{Slug: "books", Name: "Books & Magazines"},
	{Slug: "baby-kids", Name: "Baby & Kids"},
	{Slug: "sports-outdoor", Name: "Sports & Outdoor"},
	{Slug: "home-garden", Name: "Home & Garden"},
	{Slug: "toys-hobbies", Name: "Toys & Hobbies"},
	{Slug: "pets", Name: "Pet Supplies"},
	{Slug: "others", Name: "Others"},
}

var (
	conditions = []string{"new", "like new", "used", "worn"}
	locations  = []string{"Setagaya, Tokyo", "Kita-ku, Osaka", "Naka-ku, Yokohama", "Chuo-ku, Fukuoka"}
)

func main() {
	if err := run(); err != nil {
		logging.Logger().Fatalf("seed failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()
	_ = godotenv.Load()
	log := logging.Logger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	var scfg seedConfig
	if err := env.Parse(&scfg); err != nil {
		return fmt.Errorf("load seed config: %w", err)
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store := repository.NewStore(gdb)
	for i := range categories {
		if err := store.Categories().EnsureExists(ctx, &categories[i]); err != nil {
			return fmt.Errorf("ensure category %s: %w", categories[i].Slug, err)
		}
	}
	log.Infof("categories ensured: %d", len(categories))

	cnt, err := store.Listings().Count(ctx)
	if err != nil {
		return fmt.Errorf("count listings: %w", err)
	}
	if cnt > 0 && !scfg.ForceSeed {
		log.Infof("listings already exist; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}
	if scfg.ForceSeed {
		if err := clearSeedListings(ctx, gdb); err != nil {
			return err
		}
	}

	listings := service.NewListingService(store, service.NewReputationService(store, nil), nil)
	inputs := buildSeedListings()
	if scfg.SampleItemsDir != "" {
		more, err := sampleDirListings(scfg.SampleItemsDir)
		if err != nil {
			return err
		}
		inputs = append(inputs, more...)
	}
	for i, in := range inputs {
		owner := fmt.Sprintf("%s%d", seedOwnerPrefix, i%3+1)
		if _, err := listings.Create(ctx, owner, in); err != nil {
			return fmt.Errorf("create listing %q: %w", in.Title, err)
		}
	}
	log.Infof("seeded %d listings", len(inputs))
	return nil
}

func clearSeedListings(ctx context.Context, gdb *gorm.DB) error {
	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seeded := tx.Model(&model.Listing{}).Select("id").Where("owner_uid LIKE ?", seedOwnerPrefix+"%")
		if err := tx.Where("listing_id IN (?)", seeded).Delete(&model.ListingImage{}).Error; err != nil {
			return fmt.Errorf("clear images: %w", err)
		}
		if err := tx.Where("listing_id IN (?)", seeded).Delete(&model.ListingMissingReport{}).Error; err != nil {
			return fmt.Errorf("clear missing reports: %w", err)
		}
		if err := tx.Where("owner_uid LIKE ?", seedOwnerPrefix+"%").Delete(&model.Listing{}).Error; err != nil {
			return fmt.Errorf("clear listings: %w", err)
		}
		return nil
	})
}

func buildSeedListings() []service.ListingInput {
	titles := map[string][]string{
		"furniture":      {"Oak bookshelf", "Folding dining chair", "Low coffee table"},
		"kitchen":        {"Rice cooker (3 cups)", "Cast iron skillet", "Set of 6 glasses"},
		"fashion":        {"Wool winter coat", "Canvas tote bag"},
		"electronics":    {"USB-C charger", "Desk lamp with LED bulb", "Bluetooth speaker"},
		"books":          {"Cookbook collection", "Paperback mystery novels"},
		"baby-kids":      {"Baby stroller", "Picture book bundle"},
		"sports-outdoor": {"Camping lantern", "Yoga mat"},
		"home-garden":    {"Terracotta plant pots", "Watering can"},
		"toys-hobbies":   {"1000-piece puzzle", "Wooden block set"},
		"pets":           {"Cat scratching post", "Medium dog crate"},
		"others":         {"Moving boxes", "Cable organizer"},
	}
	var out []service.ListingInput
	n := 0
	for _, c := range categories {
		for _, t := range titles[c.Slug] {
			n++
			out = append(out, service.ListingInput{
				Title:       t,
				Description: fmt.Sprintf("%s. Free to a good home, pick up only.", t),
				Category:    c.Slug,
				Condition:   conditions[n%len(conditions)],
				Location:    locations[n%len(locations)],
				Images:      []string{picsumURL(c.Slug, n)},
			})
		}
	}
	return out
}

func sampleDirListings(dir string) ([]service.ListingInput, error) {
	pattern := filepath.Join(dir, "*.webp")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob sample items: %w", err)
	}
	out := make([]service.ListingInput, 0, len(paths))
	for i, p := range paths {
		filename := filepath.Base(p)
		title := toTitle(strings.TrimSuffix(filename, filepath.Ext(filename)))
		out = append(out, service.ListingInput{
			Title:       title,
			Description: fmt.Sprintf("%s - sample listing.", title),
			Category:    "others",
			Condition:   conditions[i%len(conditions)],
			Location:    locations[i%len(locations)],
			Images:      []string{"/sample-items/" + filename},
		})
	}
	return out, nil
}

func picsumURL(slug string, n int) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s-%d/600/600", slug, n)
}

func toTitle(base string) string {
	normalized := strings.NewReplacer("-", " ", "_", " ").Replace(base)
	parts := strings.Fields(normalized)
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	for i := 1; i < len(runes); i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}
