package model

import "context"

// Uploader stores one JSON encoded dispatcher report.
type Uploader interface {
	Upload(ctx context.Context, raw []byte) error
}

type UploadCloser interface {
	Uploader
	Close() error
}
