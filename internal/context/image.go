package context

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// imageMimeType returns the mime type for a supported image extension, or "".
func imageMimeType(path string) string {
	return imageTypes[strings.ToLower(filepath.Ext(path))]
}

func loadImage(path string, size int64) (string, error) {
	if size > MaxImageSize {
		return "", fmt.Errorf("image too large (%d bytes, max %d)", size, MaxImageSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	// The extension must agree with the content.
	if sniffed := http.DetectContentType(data); sniffed != imageMimeType(path) {
		return "", fmt.Errorf("%s: content is %s: %w", filepath.Base(path), sniffed, ErrBinary)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
