package database

import (
	"errors"
	"fmt"
)

// ExitStoreUnavailable is the process exit code used when the store cannot
// be initialized.
const ExitStoreUnavailable = 3

// ErrAlreadyLoaded is returned by a second LoadStore call.
var ErrAlreadyLoaded = errors.New("database: store already loaded")

// ErrStoreUnavailable is returned by WaitUntilReady after a failed load.
var ErrStoreUnavailable = errors.New("database: store unavailable")

// ErrorKind categorizes initialization errors.
type ErrorKind string

const (
	// KindConfiguration: the shared container cannot be resolved or no
	// compiled schema is available.
	KindConfiguration ErrorKind = "CONFIGURATION"

	// KindStoreOpen: the engine failed to attach or create the backing file.
	KindStoreOpen ErrorKind = "STORE_OPEN"
)

// ConfigurationError reports a store that cannot even be located.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", KindConfiguration, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", KindConfiguration, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// Kind returns KindConfiguration.
func (e *ConfigurationError) Kind() ErrorKind { return KindConfiguration }

// StoreOpenError reports a store file that could not be opened: corruption,
// an incompatible model, or a disk or permission failure.
type StoreOpenError struct {
	Path string
	Err  error
}

func (e *StoreOpenError) Error() string {
	return fmt.Sprintf("%s: open %s: %v", KindStoreOpen, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StoreOpenError) Unwrap() error { return e.Err }

// Kind returns KindStoreOpen.
func (e *StoreOpenError) Kind() ErrorKind { return KindStoreOpen }

// IsConfigurationError returns true if err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsStoreOpenError returns true if err is or wraps a StoreOpenError.
func IsStoreOpenError(err error) bool {
	var oe *StoreOpenError
	return errors.As(err, &oe)
}
