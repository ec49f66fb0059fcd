// Package unify merges normalized per-source records into one profile per
// identity and derives the churn label.
//
// The join is a full outer join on the email identity key: every identity
// that appears in any source yields exactly one profile. Gaps left by
// sources that did not cover an identity are filled from a FillPolicy, so a
// profile never carries an absent field. Output is sorted by email.
package unify
