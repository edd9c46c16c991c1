package port

import "context"

type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type ImageCompressor interface {
	// Compress transcodes data and keeps a scratch copy under scratchName.
	Compress(data []byte, scratchName string) ([]byte, error)
}

type ImageHost interface {
	// Upload returns the public URL of the hosted image. Overload responses
	// wrap domain.ErrUploadTransient, anything else domain.ErrUploadFatal.
	Upload(ctx context.Context, data []byte) (string, error)
}
