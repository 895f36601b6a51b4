package etl

import "errors"

// Configuration errors. They are raised before any network or warehouse
// activity and are not worth retrying.
var (
	ErrUnknownResource = errors.New("unknown resource")
	ErrInvalidWindow   = errors.New("invalid time window")
	ErrInvalidSchema   = errors.New("invalid resource schema")
)

// ErrTableNotFound is returned by warehouses when the queried table does
// not exist. The window resolver treats it as "nothing ingested yet".
var ErrTableNotFound = errors.New("table not found")

// ErrSchemaViolation means a transformed record does not match its schema.
var ErrSchemaViolation = errors.New("record does not match schema")

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrUnknownResource) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidSchema)
}
