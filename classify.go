package conveyor

import "errors"

// Class is an opaque error-classification key attached to handler errors.
// The engine never inspects error content; it only forwards the class to
// the configured retry policy, which may map classes to different delays
// (or to "do not retry"). The taxonomy itself belongs to the caller.
type Class string

// ClassUnknown is reported by ClassOf for errors without a classification.
const ClassUnknown Class = ""

// classifiedError wraps an error with a classification key.
type classifiedError struct {
	err   error
	class Class
}

func (c *classifiedError) Error() string { return c.err.Error() }
func (c *classifiedError) Unwrap() error { return c.err }

// Classify attaches a classification key to err. Passing a nil error
// returns nil.
func Classify(err error, class Class) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: class}
}

// ClassOf returns the classification key attached to err, or ClassUnknown
// if none is present anywhere in the wrap chain.
func ClassOf(err error) Class {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.class
	}
	return ClassUnknown
}
