package domain

import "fmt"

// UnknownSourceError is returned when no scraper is registered for a task's
// source ID.
type UnknownSourceError struct {
	Source string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("no scraper registered for source %q", e.Source)
}

// NoAddressesError is returned when an address file yields zero usable
// addresses.
type NoAddressesError struct {
	Path string
}

func (e *NoAddressesError) Error() string {
	return fmt.Sprintf("no addresses found in %s", e.Path)
}

// InvalidTaskError is returned when a task fails validation before fetching.
type InvalidTaskError struct {
	TaskID string
	Reason string
}

func (e *InvalidTaskError) Error() string {
	return fmt.Sprintf("invalid task %s: %s", e.TaskID, e.Reason)
}
