package scanning

import (
	"context"
	"errors"
)

var (
	// ErrNoText is returned when the backend could not read any text from the image
	ErrNoText = errors.New("no text could be extracted from the image")
	// ErrImageTooLarge is returned for uploads over the OCR size limit
	ErrImageTooLarge = errors.New("image file is too large")
	// ErrImageTooSmall is returned for uploads under the OCR size floor
	ErrImageTooSmall = errors.New("image file is too small")
	// ErrUnsupportedType is returned when the upload is neither an image nor a PDF
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrRateLimited is returned when the OCR service answers 429
	ErrRateLimited = errors.New("ocr service is rate limiting requests")
	// ErrUnauthorized is returned when the OCR service rejects the API key
	ErrUnauthorized = errors.New("ocr service rejected the api key")
	// ErrTimedOut is returned when the OCR service kept timing out
	ErrTimedOut = errors.New("ocr service timed out")
)

// Scanner defines the interface for turning a card image into text
type Scanner interface {
	// ScanText reads all text from an image or PDF, one card line per text line
	ScanText(ctx context.Context, imageData []byte, contentType string) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}

// transcribePrompt is the shared prompt used by the vision LLM scanners
const transcribePrompt = `You are reading a photo of a Canadian health or dental insurance card.
Transcribe every piece of printed text on the card exactly as it appears, top to bottom, left to right.

Rules:
- Keep each printed line as its own entry, including labels such as "Member ID" or "Group"
- Do not correct, reformat or interpret names, numbers or dates
- Do not add text that is not on the card
- If the image contains no readable text, return an empty list

Return ONLY valid JSON in this exact format:
{
  "lines": ["first line", "second line"]
}

Do not include any text before or after the JSON and do not use markdown code blocks`
