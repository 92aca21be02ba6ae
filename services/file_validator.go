package services

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

const (
	megabyte          = 1024 * 1024
	DefaultMaxPDF     = 50 * megabyte
	DefaultMaxImage   = 5 * megabyte
	DefaultMaxCSV     = 20 * megabyte
	sniffHeaderLength = 2048
)

var (
	imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}
	imageMIMEs      = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}
	imageFormats    = map[string]bool{"png": true, "jpeg": true, "gif": true, "webp": true}
)

// FileValidator gates uploads before they are stored or parsed.
type FileValidator struct {
	MaxPDFBytes   int64
	MaxImageBytes int64
	MaxCSVBytes   int64
}

func NewFileValidator(maxPDF, maxImage, maxCSV int64) *FileValidator {
	v := &FileValidator{MaxPDFBytes: maxPDF, MaxImageBytes: maxImage, MaxCSVBytes: maxCSV}
	if v.MaxPDFBytes <= 0 {
		v.MaxPDFBytes = DefaultMaxPDF
	}
	if v.MaxImageBytes <= 0 {
		v.MaxImageBytes = DefaultMaxImage
	}
	if v.MaxCSVBytes <= 0 {
		v.MaxCSVBytes = DefaultMaxCSV
	}
	return v
}

func sizeError(size, limit int64) error {
	return apierr.InvalidInput("file", "File size (%.1f MB) exceeds maximum allowed size (%.1f MB).",
		float64(size)/megabyte, float64(limit)/megabyte)
}

func sniffHeader(data []byte) []byte {
	if len(data) > sniffHeaderLength {
		return data[:sniffHeaderLength]
	}
	return data
}

func (v *FileValidator) ValidatePDF(filename string, data []byte) error {
	if int64(len(data)) > v.MaxPDFBytes {
		return sizeError(int64(len(data)), v.MaxPDFBytes)
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return apierr.InvalidInput("file", "File must have a .pdf extension.")
	}
	header := sniffHeader(data)
	if !bytes.HasPrefix(header, []byte("%PDF-")) {
		return apierr.InvalidInput("file", "Invalid PDF file. The file content does not match PDF format.")
	}
	if mt := mimetype.Detect(header); !mt.Is("application/pdf") {
		return apierr.InvalidInput("file", "Invalid file type: %s. Only PDF files are allowed.", mt.String())
	}
	return nil
}

// ValidateImage returns the decoded image dimensions on success.
func (v *FileValidator) ValidateImage(filename string, data []byte) (image.Config, error) {
	if int64(len(data)) > v.MaxImageBytes {
		return image.Config{}, sizeError(int64(len(data)), v.MaxImageBytes)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] {
		return image.Config{}, apierr.InvalidInput("file", "Invalid file extension: %s. Allowed: .png, .jpg, .jpeg, .gif, .webp", ext)
	}

	mt := mimetype.Detect(sniffHeader(data))
	sniffed := false
	for _, m := range imageMIMEs {
		if mt.Is(m) {
			sniffed = true
			break
		}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || !imageFormats[format] {
		if sniffed {
			return image.Config{}, apierr.InvalidInput("file", "Image header could not be decoded.")
		}
		return image.Config{}, apierr.InvalidInput("file", "Invalid image file. The file content does not match expected image format.")
	}
	return cfg, nil
}

// ValidateCSV checks size and that the content is text, not a binary document.
func (v *FileValidator) ValidateCSV(filename string, data []byte) error {
	if int64(len(data)) > v.MaxCSVBytes {
		return sizeError(int64(len(data)), v.MaxCSVBytes)
	}
	if len(data) == 0 {
		return apierr.InvalidInput("file", "CSV file is empty")
	}
	for m := mimetype.Detect(sniffHeader(data)); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return nil
		}
	}
	return apierr.InvalidInput("file", "%s is not a text file", filepath.Base(filename))
}
