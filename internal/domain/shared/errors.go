package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound        = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput    = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrSyncInProgress  = NewDomainError("SYNC_IN_PROGRESS", "A sync for this cache key is already running")
	ErrUpstreamFailure = NewDomainError("UPSTREAM_FAILURE", "The ERP upstream could not be synced")
	ErrStoreFailure    = NewDomainError("STORE_FAILURE", "The local cache store is unavailable")
)
