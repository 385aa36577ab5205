// Package language wraps language identification behind a small interface
// so the normalizer can be tested without the real detector.
package language

import (
	"github.com/abadojack/whatlanggo"
)

// MinReliableLength is the minimum text length for trustworthy detection.
// Shorter inputs return the fallback language flagged as unreliable rather
// than an error.
const MinReliableLength = 24

// FallbackCode is returned when detection cannot be trusted.
const FallbackCode = "en"

// Result is one language identification outcome.
type Result struct {
	Code       string  // ISO 639-1 code
	Confidence float64 // 0..1
	Reliable   bool
}

// Detector identifies the language of a text.
type Detector interface {
	Detect(text string) Result
}

// WhatlangDetector identifies languages with the whatlanggo trigram model.
type WhatlangDetector struct{}

// NewDetector creates the default detector.
func NewDetector() *WhatlangDetector {
	return &WhatlangDetector{}
}

// Detect identifies the language of text. Inputs shorter than
// MinReliableLength yield the fallback language with Reliable=false.
func (d *WhatlangDetector) Detect(text string) Result {
	if len(text) < MinReliableLength {
		return Result{Code: FallbackCode, Confidence: 0, Reliable: false}
	}

	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		return Result{Code: FallbackCode, Confidence: info.Confidence, Reliable: false}
	}

	return Result{
		Code:       code,
		Confidence: info.Confidence,
		Reliable:   info.IsReliable(),
	}
}
