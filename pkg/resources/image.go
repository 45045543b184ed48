package resources

import (
	"encoding/base64"
	"fmt"

	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/mcptypes"
	"github.com/richard-senior/mcp/pkg/registry"
)

// placeholderPNG is a 1x1 transparent PNG, embedded so AvatarResource has
// something concrete to serve as a blob.
const placeholderPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNk+A8AAQUBAScY42YAAAAASUVORK5CYII="

// pngDimensions reads the width/height out of a PNG IHDR chunk. The avatar
// resource only ever serves PNG blobs, so this is the one format worth
// sniffing rather than carrying a general-purpose image prober.
func pngDimensions(content []byte) (int, int, error) {
	if len(content) < 24 {
		return 0, 0, fmt.Errorf("resources: content too short to be a PNG")
	}
	if content[0] != 0x89 || content[1] != 0x50 || content[2] != 0x4E || content[3] != 0x47 {
		return 0, 0, fmt.Errorf("resources: content is not PNG-signed")
	}
	width := int(content[16])<<24 | int(content[17])<<16 | int(content[18])<<8 | int(content[19])
	height := int(content[20])<<24 | int(content[21])<<16 | int(content[22])<<8 | int(content[23])
	return width, height, nil
}

func mimeTypeForExtension(ext string) string {
	switch ext {
	case "png":
		return "image/png"
	case "jpg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// AvatarResource serves a placeholder avatar image as a binary resource,
// using pngDimensions to sniff the image's width/height from the raw bytes
// rather than trusting a fixed extension.
func AvatarResource() registry.StaticResource {
	raw, err := base64.StdEncoding.DecodeString(placeholderPNG)
	if err != nil {
		logger.Fatal("resources: embedded placeholder avatar is not valid base64", err)
	}

	mimeType := mimeTypeForExtension("png")
	width, height, err := pngDimensions(raw)
	if err != nil {
		logger.Warn("resources: failed to sniff avatar image dimensions", err)
	}

	return registry.StaticResource{
		Name:        "avatar",
		Description: fmt.Sprintf("Placeholder avatar image (%dx%d)", width, height),
		URI:         "users://avatar",
		MIMEType:    mimeType,
		Handler: func(vars map[string]string, _ *mcptypes.RequestContext) (*mcptypes.ResourceContent, error) {
			return &mcptypes.ResourceContent{URI: "users://avatar", MIMEType: mimeType, Blob: raw}, nil
		},
	}
}
