package fetch

import (
	"bytes"
	"mime"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// ExtensionFromContentType maps a Content-Type header to a file
// extension, or "" when the type is unknown or too generic to trust
func ExtensionFromContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}

	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "text/css":
		return ".css"
	case "text/html":
		return ".html"
	case "application/javascript", "text/javascript":
		return ".js"
	case "application/pdf":
		return ".pdf"
	case "audio/mpeg":
		return ".mp3"
	}
	return ""
}

// ExtensionFromBytes recognizes the magic bytes of the image formats
// the source platform serves
func ExtensionFromBytes(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return ".jpg"
	case bytes.HasPrefix(data, pngSignature):
		return ".png"
	case bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")):
		return ".gif"
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return ".webp"
	}
	return ""
}

// SniffExtension picks an extension for an extensionless asset,
// trusting the declared Content-Type before the content itself
func SniffExtension(contentType string, data []byte) string {
	if ext := ExtensionFromContentType(contentType); ext != "" {
		return ext
	}
	return ExtensionFromBytes(data)
}
