package incidents

import "errors"

var (
	// ErrIncidentNotFound is returned when an incident doesn't exist.
	ErrIncidentNotFound = errors.New("incident not found")
	// ErrAlreadyResolved is returned when mutating a resolved incident.
	ErrAlreadyResolved = errors.New("incident already resolved")
	// ErrInvalidStatus is returned for an unknown incident status.
	ErrInvalidStatus = errors.New("invalid incident status")
	// ErrInvalidImpact is returned for an unknown impact level.
	ErrInvalidImpact = errors.New("invalid impact level")
	// ErrNoAffectedServices is returned when an incident is created without services.
	ErrNoAffectedServices = errors.New("incident must affect at least one service")
	// ErrAffectedServiceNotFound is returned when a referenced service doesn't exist.
	ErrAffectedServiceNotFound = errors.New("affected service not found")
	// ErrResolveViaStatus is returned when a status change targets resolved.
	ErrResolveViaStatus = errors.New("resolving requires the resolve operation")
)
