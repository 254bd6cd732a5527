// Package subscriber holds recipient records and CSV list ingestion.
//
// A subscriber is an ordered-by-nothing mapping of field name to string
// value: the column set of an import file is not known at compile time, and
// every column becomes a template variable by name.
package subscriber

// Subscriber is one recipient record. It always carries an "email" field
// after ingestion; everything else is optional template data.
type Subscriber map[string]string

// Email returns the subscriber's email address, or "" if absent.
func (s Subscriber) Email() string {
	return s["email"]
}

// Field returns the named field value, or "" if absent.
func (s Subscriber) Field(name string) string {
	return s[name]
}
