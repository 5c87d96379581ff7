package masterdata

import "errors"

var (
	// ErrUnknownEntity is returned for an entity name that is not cached
	ErrUnknownEntity = errors.New("masterdata: unknown entity")
	// ErrInvalidScope is returned when a scope is missing, unexpected or malformed
	ErrInvalidScope = errors.New("masterdata: invalid scope")
)

var (
	// ErrMissingKey is returned when a fetched record has no natural key
	ErrMissingKey = errors.New("masterdata: missing natural key")
	// ErrUnknownPartnerType is returned for a business partner type that cannot be mapped
	ErrUnknownPartnerType = errors.New("masterdata: unknown business partner type")
)
