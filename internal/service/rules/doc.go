// Package rules manages named, versioned scoring rule sets.
//
// Saving a rule set never overwrites: each save under a name creates the
// next version, and reads return the latest version unless one is asked
// for. A rule set is validated before it reaches the repository, so the
// store only ever holds rule sets the scorer accepts.
//
// The name "default" is reserved for the built-in rule set and is never
// read from or written to the repository.
//
// The service layer depends on the Repository interface defined in
// repository.go and never imports database/sql directly.
package rules
