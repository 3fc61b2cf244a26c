package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	Endpoint string
	APIKey   string
	Language string
}

// OCRSpaceProvider calls the OCR.space parse API. There is no official
// Go SDK, so this wraps the documented multipart form endpoint.
type OCRSpaceProvider struct {
	cfg    Config
	client *http.Client
}

func NewOCRSpace(cfg Config) *OCRSpaceProvider {
	return &OCRSpaceProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type parseResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

func (p *OCRSpaceProvider) ExtractText(ctx context.Context, image []byte, filename string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	if filename == "" {
		filename = "ticket.jpg"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	_ = writer.WriteField("language", p.cfg.Language)
	_ = writer.WriteField("isOverlayRequired", "true")
	_ = writer.WriteField("apikey", p.cfg.APIKey)
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ocr service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read ocr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr service returned status %d", resp.StatusCode)
	}

	var parsed parseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}

	if parsed.IsErroredOnProcessing || len(parsed.ParsedResults) == 0 {
		return "", fmt.Errorf("ocr failed: %s", errorMessage(parsed.ErrorMessage))
	}

	return parsed.ParsedResults[0].ParsedText, nil
}

// errorMessage flattens the API's error field, which is sometimes a
// string and sometimes an array of strings.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "unknown error"
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return strings.Join(many, "; ")
	}

	return "unknown error"
}
