package analysis

import (
	"mime"
	"path/filepath"
	"strings"
)

// acceptedContentTypes are the image MIME types the gateway forwards upstream
var acceptedContentTypes = map[string]bool{
	"image/jpeg":        true,
	"image/png":         true,
	"image/tiff":        true,
	"application/dicom": true,
}

var extContentTypes = map[string]string{
	".dcm":   "application/dicom",
	".dicom": "application/dicom",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".png":   "image/png",
	".tif":   "image/tiff",
	".tiff":  "image/tiff",
}

// IsAcceptedContentType reports whether ct (parameters ignored) is an accepted image type.
func IsAcceptedContentType(ct string) bool {
	return acceptedContentTypes[baseMediaType(ct)]
}

// ContentTypeForFile resolves the content type of an uploaded file. The declared type wins
// unless it is empty or generic, in which case the file extension decides.
func ContentTypeForFile(filename, declared string) string {
	base := baseMediaType(declared)
	if base != "" && base != "application/octet-stream" {
		return base
	}
	if ct, ok := extContentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return base
}

func baseMediaType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(ct)
	}
	return mt
}
