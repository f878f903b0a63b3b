package repo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// TelegramFileResponse represents the response from getFile
type TelegramFileResponse struct {
	Ok     bool `json:"ok"`
	Result struct {
		FileID   string `json:"file_id"`
		FileSize int    `json:"file_size"`
		FilePath string `json:"file_path"`
	} `json:"result"`
}

type summaryResponse struct {
	Thumbnail struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
	OriginalImage struct {
		Source string `json:"source"`
	} `json:"originalimage"`
}

// ImageService resolves Telegram uploads and recommendation card images
type ImageService struct {
	BotToken       string
	BaseURL        string
	FileBaseURL    string
	SummaryBaseURL string
	client         *http.Client
}

// NewImageService creates a new image service
func NewImageService(botToken string) *ImageService {
	return &ImageService{
		BotToken:       botToken,
		BaseURL:        "https://api.telegram.org/bot",
		FileBaseURL:    "https://api.telegram.org/file/bot",
		SummaryBaseURL: "https://en.wikipedia.org/api/rest_v1/page/summary/",
		client:         &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *ImageService) getJSON(ctx context.Context, rawURL string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "CareerBot/1.0")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		return fmt.Errorf("error unmarshaling response: %w", err)
	}
	return nil
}

// ConvertFileIDToURL converts a Telegram file ID to a downloadable URL
func (s *ImageService) ConvertFileIDToURL(ctx context.Context, fileID string) (string, error) {
	getFileURL := fmt.Sprintf("%s%s/getFile?file_id=%s", s.BaseURL, s.BotToken, url.QueryEscape(fileID))

	var fileResponse TelegramFileResponse
	if err := s.getJSON(ctx, getFileURL, &fileResponse); err != nil {
		return "", fmt.Errorf("error getting file path: %w", err)
	}
	if !fileResponse.Ok || fileResponse.Result.FilePath == "" {
		return "", fmt.Errorf("couldn't retrieve file path for file ID: %s", fileID)
	}

	return fmt.Sprintf("%s%s/%s", s.FileBaseURL, s.BotToken, fileResponse.Result.FilePath), nil
}

// Download fetches the bytes behind a Telegram file id.
func (s *ImageService) Download(ctx context.Context, fileID string) ([]byte, string, error) {
	fileURL, err := s.ConvertFileIDToURL(ctx, fileID)
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("error downloading file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("error downloading file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("error downloading file: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// CardImage looks up an illustration for a recommendation title.
func (s *ImageService) CardImage(ctx context.Context, title string) (string, error) {
	page := url.PathEscape(strings.ReplaceAll(strings.TrimSpace(title), " ", "_"))
	var summary summaryResponse
	if err := s.getJSON(ctx, s.SummaryBaseURL+page, &summary); err != nil {
		return "", fmt.Errorf("error looking up image for %q: %w", title, err)
	}
	if summary.Thumbnail.Source != "" {
		return summary.Thumbnail.Source, nil
	}
	if summary.OriginalImage.Source != "" {
		return summary.OriginalImage.Source, nil
	}
	return "", fmt.Errorf("no image for %q", title)
}
