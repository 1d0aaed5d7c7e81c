package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultOCRSpaceURL = "https://api.ocr.space/parse/image"

// OCRSpace implements the Scanner interface using the OCR.space parse API
type OCRSpace struct {
	apiKey string
	url    string
	client *http.Client

	// MaxAttempts is how many times one image is sent before giving up
	MaxAttempts int
	// BaseDelay is multiplied by the attempt number between retries
	BaseDelay time.Duration
	// Limiter throttles requests across all scans
	Limiter *rate.Limiter
}

// NewOCRSpace creates a new OCR.space Scanner instance
func NewOCRSpace(apiKey string, apiURL string) (*OCRSpace, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ocr.space api key is required")
	}
	if apiURL == "" {
		apiURL = defaultOCRSpaceURL
	}

	return &OCRSpace{
		apiKey:      apiKey,
		url:         apiURL,
		client:      &http.Client{Timeout: 60 * time.Second},
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Limiter:     rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	}, nil
}

// ocrMessages accepts ErrorMessage as either a string or a list of strings
type ocrMessages []string

func (m *ocrMessages) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*m = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if single != "" {
		*m = []string{single}
	}
	return nil
}

func (m ocrMessages) first() string {
	if len(m) == 0 {
		return ""
	}
	return m[0]
}

type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText        string `json:"ParsedText"`
		FileParseExitCode int    `json:"FileParseExitCode"`
	} `json:"ParsedResults"`
	OCRExitCode           int         `json:"OCRExitCode"`
	IsErroredOnProcessing bool        `json:"IsErroredOnProcessing"`
	ErrorMessage          ocrMessages `json:"ErrorMessage"`
}

// retryable marks an attempt failure that is worth sending again
type retryable struct {
	err    error
	factor int
}

func (r *retryable) Error() string { return r.err.Error() }
func (r *retryable) Unwrap() error { return r.err }

// ocrEngine picks engine 1 first, which is the more reliable one on cards
func ocrEngine(attempt int) string {
	if attempt <= 2 {
		return "1"
	}
	return "2"
}

// ScanText uploads the image and returns the parsed text
func (o *OCRSpace) ScanText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	upload, fileType, err := prepareUpload(imageData, contentType)
	if err != nil {
		return "", err
	}

	maxAttempts := o.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		if o.Limiter != nil {
			if err := o.Limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("waiting for ocr rate limit: %w", err)
			}
		}

		engine := ocrEngine(attempt)
		text, err := o.parse(ctx, upload, fileType, engine)
		if err == nil {
			slog.Info("OCR succeeded", "attempt", attempt, "engine", engine)
			return text, nil
		}

		var retry *retryable
		if !errors.As(err, &retry) {
			return "", err
		}
		if attempt >= maxAttempts {
			return "", fmt.Errorf("ocr failed after %d attempts: %w", attempt, retry.err)
		}

		slog.Warn("OCR attempt failed, retrying", "attempt", attempt, "max_attempts", maxAttempts, "error", retry.err)
		delay := time.Duration(attempt*retry.factor) * o.BaseDelay
		if err := sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

func (o *OCRSpace) parse(ctx context.Context, upload []byte, fileType string, engine string) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fields := [][2]string{
		{"apikey", o.apiKey},
		{"language", "eng"},
		{"isOverlayRequired", "false"},
		{"OCREngine", engine},
		{"filetype", fileType},
		{"detectOrientation", "true"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("writing form field %s: %w", f[0], err)
		}
	}

	part, err := w.CreateFormFile("file", "insurance-card."+strings.ToLower(fileType))
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(upload); err != nil {
		return "", fmt.Errorf("writing form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, &body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &retryable{err: fmt.Errorf("calling ocr.space API: %w", err), factor: 2}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ocr.space API error (status %d): %s", resp.StatusCode, string(msg))
	}

	var result ocrSpaceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if result.IsErroredOnProcessing {
		msg := result.ErrorMessage.first()
		switch {
		case strings.Contains(msg, "E101"):
			return "", &retryable{err: fmt.Errorf("%w: %s", ErrTimedOut, msg), factor: 1}
		case strings.Contains(msg, "E102"), strings.Contains(msg, "E103"):
			return "", &retryable{err: fmt.Errorf("ocr processing error: %s", msg), factor: 1}
		case strings.Contains(msg, "E216"):
			return "", fmt.Errorf("%w: %s", ErrUnsupportedType, msg)
		default:
			return "", fmt.Errorf("ocr processing error: %s", msg)
		}
	}

	if len(result.ParsedResults) == 0 {
		return "", &retryable{err: ErrNoText, factor: 1}
	}

	texts := make([]string, 0, len(result.ParsedResults))
	for _, r := range result.ParsedResults {
		texts = append(texts, strings.ReplaceAll(r.ParsedText, "\r\n", "\n"))
	}
	text := strings.Join(texts, "\n")
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}

	return text, nil
}

// Close is a no-op for the HTTP client
func (o *OCRSpace) Close() error {
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
