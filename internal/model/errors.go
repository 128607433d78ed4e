package model

import "errors"

var (
	ErrFetchTimeout            = errors.New("fetch timeout")
	ErrBrowserUnavailable      = errors.New("browser unavailable")
	ErrExtractionSchemaChanged = errors.New("extraction schema changed")
	ErrCacheCorrupt            = errors.New("cache corrupt")
	ErrInvalidFilterQuery      = errors.New("invalid filter query")
)
