package catalog

import "errors"

// Catalog errors.
var (
	ErrServiceNotFound = errors.New("service not found")
	ErrServiceExists   = errors.New("service with this name already exists")
	ErrTeamNotFound    = errors.New("team not found")
)
