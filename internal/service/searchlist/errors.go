package searchlist

import "errors"

// Sentinel errors for the saved search list service layer.
var (
	ErrNotFound     = errors.New("search list not found")
	ErrSystemList   = errors.New("system search lists cannot be modified")
	ErrNameRequired = errors.New("search list name is required")
)
