package domain

import "errors"

// Extraction errors
var (
	ErrRegionNotFound      = errors.New("content region not found")
	ErrScriptNotFound      = errors.New("no script with flashvars found in content region")
	ErrDescriptorNotFound  = errors.New("flashvars JSON data not found")
	ErrMalformedDescriptor = errors.New("malformed flashvars JSON")
	ErrNoMediaDefinitions  = errors.New("no mediaDefinitions found in flashvars")
	ErrNotRemote           = errors.New("last media definition is not remote")
	ErrNoMediaURL          = errors.New("last media URL not found")
)

// Transport and pipeline errors
var (
	ErrFetch            = errors.New("fetch failed")
	ErrDecode           = errors.New("decode failed")
	ErrEmptyResult      = errors.New("no quality options found")
	ErrInvalidSelection = errors.New("invalid quality selection")
	ErrDownload         = errors.New("download failed")
)

// Orchestrator errors
var (
	ErrEmptyURL          = errors.New("page URL is empty")
	ErrItemNotFound      = errors.New("item not found")
	ErrInvalidTransition = errors.New("operation not allowed in current state")
	ErrStopped           = errors.New("engine is not running")
)
