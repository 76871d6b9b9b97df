package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidResolution   = errors.New("invalid resolution")
	ErrSourceImageRequired = errors.New("source image required for image-to-image")
	ErrUnsupportedMedia    = errors.New("unsupported media type")
)
