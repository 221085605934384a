// Package imaging downscales and recompresses photos before upload and
// derives thumbnail URLs from full-size object URLs.
package imaging

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"
	"strings"

	// registered decoders for the formats users actually upload
	_ "image/gif"
	_ "image/png"

	"github.com/nfnt/resize"
	"github.com/rotisserie/eris"
)

// ThumbSuffix is inserted before the file extension of a full-size URL to
// name its thumbnail object.
const ThumbSuffix = "_thumb"

// Convert decodes an image, downscales it uniformly so neither dimension
// exceeds maxDim (never upscales), and re-encodes it as JPEG at the given
// quality. It fails when the input cannot be decoded or encoded.
func Convert(r io.Reader, maxDim int, quality int) ([]byte, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, eris.Wrap(err, "imaging: decode")
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxDim > 0 && (w > maxDim || h > maxDim) {
		if w >= h {
			img = resize.Resize(uint(maxDim), 0, img, resize.Lanczos3)
		} else {
			img = resize.Resize(0, uint(maxDim), img, resize.Lanczos3)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, eris.Wrap(err, "imaging: encode jpeg")
	}
	return buf.Bytes(), nil
}

// ThumbnailURL derives the thumbnail object URL from a full-size URL by
// inserting ThumbSuffix before the file extension, preserving any query
// string. A URL without an extension is returned unchanged. This is a
// naming convention only; no resizing happens here.
func ThumbnailURL(url string) string {
	base := url
	query := ""
	if i := strings.Index(url, "?"); i >= 0 {
		base, query = url[:i], url[i:]
	}

	dot := strings.LastIndex(base, ".")
	slash := strings.LastIndex(base, "/")
	if dot < 0 || dot < slash {
		return url
	}
	return base[:dot] + ThumbSuffix + base[dot:] + query
}
