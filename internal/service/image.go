package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/foodia/backend/config"
)

// ImageService resolves a representative stock photo for a recipe title.
// Every failure inside it degrades to a nil URL: an un-illustrated recipe is
// a valid outcome and image lookup never aborts the pipeline.
type ImageService struct {
	pexelsKey    string
	pexelsURL    string
	translateURL string
	s3Config     *config.S3Config
	client       *http.Client
}

// NewImageService creates a new ImageService instance. s3Config may be nil,
// in which case fetched images are served from their upstream URL.
func NewImageService(cfg *config.Config, s3Config *config.S3Config) *ImageService {
	return &ImageService{
		pexelsKey:    cfg.PexelsAPIKey,
		pexelsURL:    cfg.PexelsAPIURL,
		translateURL: cfg.TranslateAPIURL,
		s3Config:     s3Config,
		client:       &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchFoodImage returns the medium-resolution URL of a food photo matching
// the recipe title, or nil when translation, search or download fails.
func (s *ImageService) FetchFoodImage(ctx context.Context, recipeTitle string) *string {
	translated := s.translateToEnglish(ctx, recipeTitle)

	imageURL, err := s.searchPexels(ctx, "food "+translated)
	if err != nil {
		log.Printf("[ImageService] image search failed for %q: %v", recipeTitle, err)
		return nil
	}
	if imageURL == "" {
		log.Printf("[ImageService] no image results for %q", recipeTitle)
		return nil
	}

	if s.s3Config != nil {
		if mirrored, err := s.mirrorToS3(ctx, imageURL); err == nil {
			return &mirrored
		} else {
			log.Printf("[ImageService] failed to mirror image to S3, using upstream URL: %v", err)
		}
	}

	return &imageURL
}

// translateToEnglish translates the title best-effort; on any failure the
// original text is used as the search query.
func (s *ImageService) translateToEnglish(ctx context.Context, text string) string {
	endpoint := fmt.Sprintf("%s?client=gtx&sl=auto&tl=en&dt=t&q=%s", s.translateURL, url.QueryEscape(text))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return text
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[ImageService] translation request failed: %v", err)
		return text
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[ImageService] translation failed with status %d", resp.StatusCode)
		return text
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return text
	}

	// Response shape: [[["translated","original",...],...],...]
	var outer []json.RawMessage
	if err := json.Unmarshal(body, &outer); err != nil || len(outer) == 0 {
		return text
	}
	var segments [][]interface{}
	if err := json.Unmarshal(outer[0], &segments); err != nil {
		return text
	}

	var b strings.Builder
	for _, seg := range segments {
		if len(seg) > 0 {
			if t, ok := seg[0].(string); ok {
				b.WriteString(t)
			}
		}
	}
	if b.Len() == 0 {
		return text
	}
	return b.String()
}

// searchPexels queries the image search API and returns the first result's
// medium-resolution URL, or "" when there are no results.
func (s *ImageService) searchPexels(ctx context.Context, query string) (string, error) {
	endpoint := fmt.Sprintf("%s?query=%s&per_page=1", s.pexelsURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.pexelsKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image search failed with status %d", resp.StatusCode)
	}

	var result struct {
		Photos []struct {
			Src struct {
				Medium string `json:"medium"`
			} `json:"src"`
		} `json:"photos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	if len(result.Photos) == 0 {
		return "", nil
	}
	return result.Photos[0].Src.Medium, nil
}

// mirrorToS3 downloads the image and re-uploads it to the configured bucket,
// returning the bucket URL.
func (s *ImageService) mirrorToS3(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download image, status: %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read image data: %w", err)
	}

	fileName := fmt.Sprintf("recipe-images/%s.jpg", uuid.New().String())

	_, err = s.s3Config.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Config.BucketName),
		Key:         aws.String(fileName),
		Body:        bytes.NewReader(imageData),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.s3Config.BucketName, fileName), nil
}
