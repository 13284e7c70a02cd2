// Package avatar checks uploaded avatar images before they are stored.
package avatar

import (
	"bytes"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// MaxSize is the largest avatar accepted, in bytes.
const MaxSize = 5 << 20

var mimeToExt = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// svgActive matches SVG content that can run script when served inline.
var svgActive = regexp.MustCompile(`(?i)<script|javascript:|<foreignobject|\son[a-z]+\s*=`)

// Allowed reports whether ext (lower case, with dot) is an accepted avatar
// extension.
func Allowed(ext string) bool {
	if ext == ".jpeg" {
		return true
	}
	for _, e := range mimeToExt {
		if e == ext {
			return true
		}
	}
	return false
}

// ExtForMIME returns the extension for an image media type, or "" when the
// type is not accepted. Parameters after ';' are ignored.
func ExtForMIME(mediaType string) string {
	mt, _, _ := strings.Cut(mediaType, ";")
	return mimeToExt[strings.TrimSpace(mt)]
}

// Validate checks that data really is an image of the type ext claims.
// SVGs must contain an <svg element and no scripting.
func Validate(data []byte, ext string) error {
	if ext == ".svg" {
		prefix := data
		if len(prefix) > 1024 {
			prefix = prefix[:1024]
		}
		if !bytes.Contains(prefix, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be a valid SVG (missing <svg tag)")
		}
		if svgActive.Match(data) {
			return fmt.Errorf("SVG contains scripting, which is not allowed")
		}
		return nil
	}

	detected := http.DetectContentType(data)
	got := ExtForMIME(detected)
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if got == "" || got != ext {
		return fmt.Errorf("content does not match %s (detected: %s)", ext, detected)
	}
	return nil
}
