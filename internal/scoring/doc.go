// Package scoring computes a bounded churn risk score for unified profiles.
//
// A score is the sum of the weights of every rule whose predicate holds,
// clamped to [0,1]. Rules are plain data: a field, a comparison operator, a
// threshold and a weight. A RuleSet is validated before any profile is
// scored, so a bad rule never yields a partial batch.
//
// Segments:
//
//	score >= 0.75  High Risk
//	score >= 0.40  Moderate Risk
//	otherwise      Low Risk
package scoring
