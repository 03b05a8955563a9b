package assetstore

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	appErr "github.com/weirwood/scry/internal/pkg/errors"
)

// EncodeDataURI wraps raw image bytes into the embedded-data form the game
// client renders directly. The media type is sniffed from the bytes so a
// jpeg payload stored under a .png name still round-trips correctly.
func EncodeDataURI(data []byte) string {
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/png"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI accepts either a full data URI or bare base64 and returns
// the raw bytes.
func DecodeDataURI(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:image") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, fmt.Errorf("%w: malformed data uri", appErr.ErrInvalid)
		}
		s = s[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image payload: %v", appErr.ErrInvalid, err)
	}
	return raw, nil
}
