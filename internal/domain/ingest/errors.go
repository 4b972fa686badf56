package ingest

import "errors"

var (
	ErrNonStandardName    = errors.New("non-standard file name")
	ErrInvalidTimestamp   = errors.New("invalid file name timestamp")
	ErrUnknownPlatform    = errors.New("unknown platform")
	ErrUnknownDomain      = errors.New("unknown data domain")
	ErrUnknownGranularity = errors.New("unknown granularity")

	ErrUnreadableFile    = errors.New("unreadable file")
	ErrMissingColumn     = errors.New("missing required column")
	ErrMissingShop       = errors.New("missing shop_id (needs assignment)")
	ErrUnsupportedDomain = errors.New("unsupported data domain")
)
