// Package validation guards the inputs the pipeline accepts from outside:
// uploaded manifests, downloaded image bytes, URLs and file names.
package validation

import (
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// ErrDisallowedFileType is returned when content is not in the allowlist.
var ErrDisallowedFileType = errors.New("file type not allowed")

// allowedImageTypes are the formats the compressor can decode.
var allowedImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

// ValidateImage sniffs data and returns its MIME type when it is a decodable
// image format.
func ValidateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty body", ErrDisallowedFileType)
	}
	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedImageTypes...) {
		return mtype.String(), fmt.Errorf("%w: %s", ErrDisallowedFileType, mtype.String())
	}
	return mtype.String(), nil
}

// ValidateManifest checks that the upload is text (CSV or plain text) and
// rewinds the reader so the parser sees the whole file.
func ValidateManifest(reader io.ReadSeeker) (string, error) {
	mtype, err := mimetype.DetectReader(reader)
	if err != nil {
		return "", err
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return mtype.String(), nil
		}
	}
	return mtype.String(), fmt.Errorf("%w: %s", ErrDisallowedFileType, mtype.String())
}
