package app

import "errors"

var (
	ErrPageFetch     = errors.New("page fetch failed")
	ErrSocketRefused = errors.New("live socket refused the page token")
)
