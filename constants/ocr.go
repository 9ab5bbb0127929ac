package constants

// OCRMode controls when pages are re-rendered and OCR'd during capture.
type OCRMode string

const (
	OCRModeAuto   OCRMode = "auto"   // OCR pages whose native text density is below threshold
	OCRModeOff    OCRMode = "off"    // never OCR
	OCRModeAlways OCRMode = "always" // OCR every page regardless of density
)

// ValidOCRMode reports whether s is one of the supported OCR modes.
func ValidOCRMode(s string) bool {
	switch OCRMode(s) {
	case OCRModeAuto, OCRModeOff, OCRModeAlways:
		return true
	}
	return false
}

// WordSource marks the provenance of a captured word or char.
const (
	SourceNative = "native"
	SourceOCR    = "ocr"
)
