package ocr

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DataURL encodes image bytes as a data: URL. The MIME type is detected from
// the content, not the file name.
func DataURL(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}
	return "data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// DataURLFromFile reads path and encodes it with DataURL.
func DataURLFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	url, err := DataURL(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return url, nil
}
