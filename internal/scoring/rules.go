package scoring

import (
	"fmt"
	"math"
)

// Field names a numeric scoring input on a unified profile.
type Field string

const (
	FieldPaymentFailures         Field = "payment_failures"
	FieldDaysSinceLastEmailClick Field = "days_since_last_email_click"
	FieldTotalPayments           Field = "total_payments"
	FieldPercentEmailsClicked    Field = "percent_emails_clicked"
	FieldNumberOfTickets         Field = "number_of_tickets"
)

// Fields lists every scoring input in default rule order.
var Fields = []Field{
	FieldPaymentFailures,
	FieldDaysSinceLastEmailClick,
	FieldTotalPayments,
	FieldPercentEmailsClicked,
	FieldNumberOfTickets,
}

func validField(f Field) bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// Operator is a threshold comparison.
type Operator string

const (
	OpGreaterOrEqual Operator = "gte"
	OpGreater        Operator = "gt"
	OpLessOrEqual    Operator = "lte"
	OpLess           Operator = "lt"
	OpEqual          Operator = "eq"
)

// operatorAliases maps accepted spellings to canonical operators.
var operatorAliases = map[string]Operator{
	"gte": OpGreaterOrEqual, ">=": OpGreaterOrEqual,
	"gt": OpGreater, ">": OpGreater,
	"lte": OpLessOrEqual, "<=": OpLessOrEqual,
	"lt": OpLess, "<": OpLess,
	"eq": OpEqual, "==": OpEqual, "=": OpEqual,
}

// Canonical returns the canonical form of op and whether op is known.
func (op Operator) Canonical() (Operator, bool) {
	c, ok := operatorAliases[string(op)]
	return c, ok
}

func (op Operator) apply(value, threshold float64) bool {
	c, _ := op.Canonical()
	switch c {
	case OpGreaterOrEqual:
		return value >= threshold
	case OpGreater:
		return value > threshold
	case OpLessOrEqual:
		return value <= threshold
	case OpLess:
		return value < threshold
	case OpEqual:
		return value == threshold
	}
	return false
}

// Rule adds Weight to a profile's score when Field compared to Threshold
// with Operator holds.
type Rule struct {
	Field     Field    `json:"field" yaml:"field"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Threshold float64  `json:"threshold" yaml:"threshold"`
	Weight    float64  `json:"weight" yaml:"weight"`
}

// Matches reports whether the rule's predicate holds for in.
func (r Rule) Matches(in Inputs) bool {
	return r.Operator.apply(in.Value(r.Field), r.Threshold)
}

func (r Rule) String() string {
	return fmt.Sprintf("%s %s %g => +%g", r.Field, r.Operator, r.Threshold, r.Weight)
}

// RuleSet is an ordered list of rules. Order fixes the summation order.
type RuleSet []Rule

// Default thresholds.
const (
	DefaultFailureThreshold = 2
	DefaultInactiveDays     = 90
	DefaultMinPayments      = 1
	DefaultClickRateFloor   = 0.20
	DefaultTicketThreshold  = 3
)

// DefaultRuleSet returns the stock rules:
//
//	payment_failures >= 2               +0.30
//	days_since_last_email_click >= 90   +0.25
//	total_payments <= 1                 +0.15
//	percent_emails_clicked < 0.20       +0.20
//	number_of_tickets >= 3              +0.10
func DefaultRuleSet() RuleSet {
	return RuleSet{
		{Field: FieldPaymentFailures, Operator: OpGreaterOrEqual, Threshold: DefaultFailureThreshold, Weight: 0.30},
		{Field: FieldDaysSinceLastEmailClick, Operator: OpGreaterOrEqual, Threshold: DefaultInactiveDays, Weight: 0.25},
		{Field: FieldTotalPayments, Operator: OpLessOrEqual, Threshold: DefaultMinPayments, Weight: 0.15},
		{Field: FieldPercentEmailsClicked, Operator: OpLess, Threshold: DefaultClickRateFloor, Weight: 0.20},
		{Field: FieldNumberOfTickets, Operator: OpGreaterOrEqual, Threshold: DefaultTicketThreshold, Weight: 0.10},
	}
}

// Validate checks every rule and returns the first problem as a
// *RuleSetError. An empty set and all-zero weights are valid.
func (rs RuleSet) Validate() error {
	for i, r := range rs {
		if !validField(r.Field) {
			return &RuleSetError{Index: i, Field: string(r.Field), Reason: "unknown field"}
		}
		if _, ok := r.Operator.Canonical(); !ok {
			return &RuleSetError{Index: i, Field: string(r.Field), Reason: fmt.Sprintf("unknown operator %q", r.Operator)}
		}
		if math.IsNaN(r.Threshold) || math.IsInf(r.Threshold, 0) {
			return &RuleSetError{Index: i, Field: string(r.Field), Reason: "threshold is not finite"}
		}
		if math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0) {
			return &RuleSetError{Index: i, Field: string(r.Field), Reason: "weight is not finite"}
		}
		if r.Weight < 0 {
			return &RuleSetError{Index: i, Field: string(r.Field), Reason: "weight is negative"}
		}
	}
	return nil
}

// Canonical returns a copy with every operator in canonical form. Call
// after Validate.
func (rs RuleSet) Canonical() RuleSet {
	out := make(RuleSet, len(rs))
	for i, r := range rs {
		if c, ok := r.Operator.Canonical(); ok {
			r.Operator = c
		}
		out[i] = r
	}
	return out
}

// Threshold returns the threshold of the first rule on f.
func (rs RuleSet) Threshold(f Field) (float64, bool) {
	for _, r := range rs {
		if r.Field == f {
			return r.Threshold, true
		}
	}
	return 0, false
}
