package domain

import "errors"

var (
	ErrNotFound          = errors.New("request not found")
	ErrInvalidManifest   = errors.New("invalid manifest")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPersistence       = errors.New("status store write failed")
	ErrQueueClosed       = errors.New("job queue is shut down")
	ErrQueueFull         = errors.New("job queue is full")

	ErrDownload        = errors.New("failed to download image")
	ErrCompress        = errors.New("failed to compress image")
	ErrUploadTransient = errors.New("image host temporarily overloaded")
	ErrUploadFatal     = errors.New("failed to upload image")
	ErrUploadExhausted = errors.New("failed to upload image after multiple attempts")
)

// IsImageError reports whether err belongs to a single image transfer and
// should only drop that image from its entity.
func IsImageError(err error) bool {
	return errors.Is(err, ErrDownload) ||
		errors.Is(err, ErrCompress) ||
		errors.Is(err, ErrUploadFatal) ||
		errors.Is(err, ErrUploadExhausted)
}
