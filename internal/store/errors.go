package store

import "errors"

// ErrorClassifier allows errors to declare their classification for status mapping.
// Errors that implement this interface can influence whether a stage failure
// results in StatusError (retry-able) or StatusNeedsReview (manual intervention).
type ErrorClassifier interface {
	// ErrorKind returns a string classification of the error.
	// Known kinds that map to StatusNeedsReview: "validation", "configuration", "not_found"
	// All other kinds map to StatusError.
	ErrorKind() string
}

// FailureStatus maps a stage error to the asset status the workflow manager
// should persist after the stage fails.
func FailureStatus(err error) Status {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		switch classifier.ErrorKind() {
		case "validation", "configuration", "not_found":
			return StatusNeedsReview
		}
	}
	return StatusError
}
