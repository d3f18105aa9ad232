// Package simerrors declares the typed error kinds SiMBA raises, per
// spec.md §7. Call sites wrap these sentinels with fmt.Errorf("...: %w",
// ...) to attach path-qualified or node-qualified context; callers test
// for a kind with errors.Is.
package simerrors

import "errors"

var (
	// ErrConfiguration covers unknown fields, invalid enum tags, missing
	// required fields, schema/version mismatch, and file-not-found for a
	// referenced path. Fatal during setup.
	ErrConfiguration = errors.New("configuration error")

	// ErrSeedMissing is raised by the randomness factory when a component
	// requests a stream before the factory has been initialized.
	ErrSeedMissing = errors.New("random stream requested before factory seeded")

	// ErrInvalidCovariance is raised when a Normal distribution's
	// covariance matrix is not symmetric positive semi-definite.
	ErrInvalidCovariance = errors.New("covariance matrix is not symmetric positive semi-definite")

	// ErrTimeRegression indicates a module reported a next_time_step that
	// is not strictly greater than the current instant. Fatal: it
	// indicates a plug-in bug.
	ErrTimeRegression = errors.New("module reported non-increasing next time step")

	// ErrMessageTypeMismatch is returned by a message handler that cannot
	// parse the payload it was offered; the node core continues walking
	// the handler chain.
	ErrMessageTypeMismatch = errors.New("message handler cannot parse payload")

	// ErrUnreachableDestination names the case of a sensor's send_to
	// naming a node that is not alive at publication time. The bus drops
	// such an envelope without returning this error and without logging.
	ErrUnreachableDestination = errors.New("destination node is not alive")

	// ErrScenarioBindingMissing indicates an event references a $k
	// variable its trigger never binds. Fatal at validation time.
	ErrScenarioBindingMissing = errors.New("scenario event references unbound variable")
)
