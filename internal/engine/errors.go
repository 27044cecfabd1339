package engine

import "errors"

// ErrNotFound marks a missing row (profile or attribute entry).
var ErrNotFound = errors.New("not found")

// ErrUnavailable marks a collaborator (scraper, classifier) that could not
// produce data. Callers skip the affected profile rather than abort.
var ErrUnavailable = errors.New("unavailable")
