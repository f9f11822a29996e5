package mjpeg

import (
	"mime"
	"net/url"
	"strings"
)

const multipartMediaType = "multipart/x-mixed-replace"

// StreamSuffixes are URL path endings that camera vendors conventionally use
// for live motion-JPEG endpoints.
var StreamSuffixes = []string{
	".mjpg",
	".mjpeg",
	"/mjpg",
	"/mjpeg",
	"/video.cgi",
	"videostream.cgi",
	"faststream.jpg",
	"nphmotionjpeg",
}

type Kind int

const (
	SingleImage Kind = iota
	Multipart
)

func (k Kind) String() string {
	if k == Multipart {
		return "multipart"
	}
	return "single"
}

type Classification struct {
	Kind     Kind
	Boundary string // diagnostics only, may be empty
	ByURL    bool   // decided from the URL rather than the content type
}

// Classify inspects the response content type and the source URL.
func Classify(contentType, sourceURL string) Classification {
	if strings.Contains(strings.ToLower(contentType), multipartMediaType) {
		return Classification{Kind: Multipart, Boundary: Boundary(contentType)}
	}
	if looksLikeStreamURL(sourceURL) {
		return Classification{Kind: Multipart, Boundary: Boundary(contentType), ByURL: true}
	}
	return Classification{Kind: SingleImage}
}

func looksLikeStreamURL(sourceURL string) bool {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(strings.TrimRight(u.Path, "/"))
	for _, suffix := range StreamSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	// mjpg-streamer: /?action=stream
	return strings.EqualFold(u.Query().Get("action"), "stream")
}

// Boundary extracts the multipart boundary token from a content type.
// Firmware quirks (quoting, casing, stray "--" prefixes, missing
// parameters) are tolerated; an empty string means none was found.
func Boundary(contentType string) string {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if b := params["boundary"]; b != "" {
			return strings.TrimPrefix(strings.Trim(b, `"'`), "--")
		}
	}

	lower := strings.ToLower(contentType)
	idx := strings.Index(lower, "boundary=")
	if idx < 0 {
		return ""
	}
	b := contentType[idx+len("boundary="):]
	if end := strings.IndexAny(b, "; \t"); end >= 0 {
		b = b[:end]
	}
	b = strings.Trim(b, `"'`)
	return strings.TrimPrefix(b, "--")
}
