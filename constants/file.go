package constants

import (
	"mime"
	"path/filepath"
	"strings"
)

// Document formats recognised by the text recovery layer.
const (
	PDF     = "PDF"
	IMAGE   = "IMAGE"
	DOC     = "DOC"
	UNKNOWN = "UNKNOWN"
)

// ImageConfidenceThreshold is the OCR confidence below which an image extraction needs review.
const ImageConfidenceThreshold = 0.6

// AllowedExtensions holds the default allowed file extensions for contract ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
	"heic": {},
	"heif": {},
	"docx": {},
}

var extFormats = map[string]string{
	"pdf":  PDF,
	"jpg":  IMAGE,
	"jpeg": IMAGE,
	"png":  IMAGE,
	"tif":  IMAGE,
	"tiff": IMAGE,
	"bmp":  IMAGE,
	"heic": IMAGE,
	"heif": IMAGE,
	"docx": DOC,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat returns the document format for a file extension, UNKNOWN when unmapped.
func MapExtToFormat(ext string) string {
	if f, ok := extFormats[NormalizeExt(ext)]; ok {
		return f
	}
	return UNKNOWN
}

// FormatFromMIME maps a content type to a document format, UNKNOWN when unmapped.
func FormatFromMIME(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return UNKNOWN
	}
	switch {
	case mt == "application/pdf":
		return PDF
	case strings.HasPrefix(mt, "image/"):
		return IMAGE
	case mt == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return DOC
	}
	return UNKNOWN
}

// ParseFormat accepts a caller-supplied format hint, case-insensitively.
func ParseFormat(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case PDF:
		return PDF
	case IMAGE, "IMG":
		return IMAGE
	case DOC, "DOCX":
		return DOC
	}
	return UNKNOWN
}

// IsHEICExt reports whether ext names a HEIC/HEIF container.
func IsHEICExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "heic", "heif", "heics", "heifs":
		return true
	}
	return false
}

// IsFormatHint reports whether s names a format a caller may pass as a hint,
// UNKNOWN included.
func IsFormatHint(s string) bool {
	return ParseFormat(s) != UNKNOWN || isUnknownHint(s)
}

func isUnknownHint(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), UNKNOWN)
}

// ResolveFormat prefers an explicit hint and falls back to the filename
// extension. An explicit UNKNOWN hint is honored.
func ResolveFormat(hint, name string) string {
	if isUnknownHint(hint) {
		return UNKNOWN
	}
	if f := ParseFormat(hint); f != UNKNOWN {
		return f
	}
	return MapExtToFormat(filepath.Ext(name))
}
