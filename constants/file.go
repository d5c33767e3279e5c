package constants

import "strings"

// SourceType is the document kind reported by the text extractor.
type SourceType string

const (
	SourcePDF   SourceType = "pdf"
	SourceImage SourceType = "image"
)

// AllowedExtensions holds the file extensions accepted for invoice ingestion.
var AllowedExtensions = map[string]SourceType{
	"pdf":  SourcePDF,
	"png":  SourceImage,
	"jpg":  SourceImage,
	"jpeg": SourceImage,
	"tif":  SourceImage,
	"tiff": SourceImage,
	"bmp":  SourceImage,
	"webp": SourceImage,
	"heic": SourceImage,
	"heif": SourceImage,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToSourceType derives the source type from the extension only.
// Returns "" for unsupported extensions.
func MapExtToSourceType(ext string) SourceType {
	return AllowedExtensions[NormalizeExt(ext)]
}

// IsHEICExt reports whether ext needs conversion before OCR.
func IsHEICExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "heic", "heif":
		return true
	}
	return false
}

// DefaultStorePath is the JSON sink file used when none is configured.
const DefaultStorePath = "invoices_db.json"
