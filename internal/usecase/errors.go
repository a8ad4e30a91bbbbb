package usecase

import "errors"

// Error taxonomy:
//
//   - ConfigError: a required identifier or name is unresolvable (owner,
//     stage role). Fatal, aborts the run before any partial metrics exist.
//   - SourceError: the CRM adapter failed. Fatal for reference sync;
//     per-deal history failures are absorbed by the deal sync engine instead.
//   - StoreError: a database write/read failed. Fatal, downstream steps
//     assume prior writes landed.
//   - ComputeError: the metrics engine is missing an input. Fatal and never
//     cached: caching an empty result would mask a misconfiguration on every
//     future read.

type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

type SourceError struct {
	Op  string
	Err error
}

func (e *SourceError) Error() string { return "crm: " + e.Op + ": " + e.Err.Error() }
func (e *SourceError) Unwrap() error { return e.Err }

type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

type ComputeError struct {
	Message string
}

func (e *ComputeError) Error() string { return e.Message }

// ErrPageLimit flags a full sync that hit the runaway-pagination ceiling.
// The fetched set is incomplete at that point, so the run must fail rather
// than silently truncate.
var ErrPageLimit = errors.New("deal listing exceeded the pagination ceiling")

func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func IsSourceError(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}
