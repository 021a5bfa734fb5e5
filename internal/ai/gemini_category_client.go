package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shinyyama/goodfinds-backend/internal/logging"
	"github.com/shinyyama/goodfinds-backend/internal/reqctx"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

// CategorySuggester picks one category slug for a listing draft.
type CategorySuggester interface {
	SuggestCategory(ctx context.Context, title, description string, slugs []string) (string, error)
}

type GeminiCategoryClient struct {
	client *genai.Client
	model  string
}

func NewGeminiCategoryClient(ctx context.Context, apiKey, model string) (*GeminiCategoryClient, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiCategoryClient{client: client, model: model}, nil
}

// SuggestCategory asks Gemini for one of slugs. Answers outside the list come back as FallbackCategory.
func (c *GeminiCategoryClient) SuggestCategory(ctx context.Context, title, description string, slugs []string) (string, error) {
	log := logging.Logger().WithFields(logrus.Fields{
		"rid":        reqctx.RID(ctx),
		"listing_id": reqctx.ListingID(ctx),
		"model":      c.model,
	})
	start := time.Now()

	parts := []*genai.Part{
		genai.NewPartFromText(categoryPrompt(slugs)),
		genai.NewPartFromText(fmt.Sprintf("Title: %s\nDescription: %s", title, description)),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	temp := float32(0)
	config := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	res, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		log.WithError(err).Warn("category suggestion failed")
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	raw := res.Text()
	slug := ParseCategory(raw, slugs)
	log.WithFields(logrus.Fields{
		"raw":   strings.ReplaceAll(truncate(raw, 80), "\n", " "),
		"slug":  slug,
		"genMs": time.Since(start).Milliseconds(),
	}).Info("category suggested")
	return slug, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
