package matching

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

// ErrInvalidRule is wrapped by every rule parse failure.
var ErrInvalidRule = errors.New("invalid match filter rule")

// RuleError reports which rule failed to parse and why.
type RuleError struct {
	Rule string
	Err  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s %q: %v", ErrInvalidRule, e.Rule, e.Err)
}

// Unwrap lets errors.Is match ErrInvalidRule.
func (e *RuleError) Unwrap() []error {
	return []error{ErrInvalidRule, e.Err}
}

// Rule is a filter expression and the reason reported when it accepts a
// candidate.
type Rule struct {
	Filter string `json:"filter"`
	Reason string `json:"reason,omitempty"`
}

// UnmarshalJSON accepts either a bare expression string or an object.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var expr string
	if err := jsoniter.Unmarshal(data, &expr); err == nil {
		*r = Rule{Filter: expr}
		return nil
	}

	type plain Rule
	var p plain
	if err := jsoniter.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("match filter must be a string or {filter, reason} object: %w", err)
	}
	*r = Rule(p)
	return nil
}

// ReasonText is the configured reason, or the expression itself when none was given.
func (r Rule) ReasonText() string {
	if r.Reason != "" {
		return r.Reason
	}
	return r.Filter
}

// Operator is the comparison a term applies to its field.
type Operator int

const (
	OpMatch Operator = iota
	OpContains
	OpSimilarity
)

// Expr is a parsed filter expression.
type Expr interface {
	Eval(Scores) bool
	String() string
}

// Term tests a single field.
type Term struct {
	Field     Field
	Op        Operator
	Threshold float64
}

// Eval reports whether the field satisfies the operator.
func (t Term) Eval(s Scores) bool {
	fm, _ := s.Get(t.Field)
	switch t.Op {
	case OpContains:
		return fm.Contains
	case OpSimilarity:
		return fm.Similarity >= t.Threshold
	default:
		return fm.Match
	}
}

func (t Term) String() string {
	switch t.Op {
	case OpContains:
		return string(t.Field) + ":contains"
	case OpSimilarity:
		return string(t.Field) + ":similarity>=" + strconv.FormatFloat(t.Threshold, 'f', -1, 64)
	default:
		return string(t.Field) + ":match"
	}
}

// And is true when both sides are.
type And struct{ Left, Right Expr }

// Eval evaluates Left then Right.
func (a And) Eval(s Scores) bool { return a.Left.Eval(s) && a.Right.Eval(s) }

func (a And) String() string { return "(" + a.Left.String() + " AND " + a.Right.String() + ")" }

// Or is true when either side is.
type Or struct{ Left, Right Expr }

// Eval evaluates Left then Right.
func (o Or) Eval(s Scores) bool { return o.Left.Eval(s) || o.Right.Eval(s) }

func (o Or) String() string { return "(" + o.Left.String() + " OR " + o.Right.String() + ")" }

var (
	parsedRules      sync.Map // rule text -> Expr
	spacedComparison = regexp.MustCompile(`\s*>=\s*`)
)

// ParseRule parses a filter expression. AND and OR have equal precedence and
// group strictly left to right: "a OR b AND c" is "(a OR b) AND c". The
// keywords are case-sensitive. Parsed rules are memoized by text.
func ParseRule(text string) (Expr, error) {
	if expr, ok := parsedRules.Load(text); ok {
		return expr.(Expr), nil
	}

	expr, err := parseRule(text)
	if err != nil {
		return nil, &RuleError{Rule: text, Err: err}
	}
	parsedRules.Store(text, expr)
	return expr, nil
}

func parseRule(text string) (Expr, error) {
	tokens := strings.Fields(spacedComparison.ReplaceAllString(text, ">="))
	if len(tokens) == 0 {
		return nil, errors.New("empty expression")
	}
	if len(tokens)%2 == 0 {
		return nil, fmt.Errorf("expression ends with dangling %q", tokens[len(tokens)-1])
	}

	first, err := parseTerm(tokens[0])
	if err != nil {
		return nil, err
	}
	var expr Expr = first
	for i := 1; i < len(tokens); i += 2 {
		right, err := parseTerm(tokens[i+1])
		if err != nil {
			return nil, err
		}
		switch tokens[i] {
		case "AND":
			expr = And{Left: expr, Right: right}
		case "OR":
			expr = Or{Left: expr, Right: right}
		default:
			return nil, fmt.Errorf("expected AND or OR, got %q", tokens[i])
		}
	}
	return expr, nil
}

func parseTerm(token string) (Term, error) {
	name, op, hasOp := strings.Cut(token, ":")

	field := Field(name)
	if _, ok := (Scores{}).Get(field); !ok {
		return Term{}, fmt.Errorf("unknown field %q", name)
	}
	if !hasOp {
		return Term{Field: field, Op: OpMatch}, nil
	}

	switch {
	case op == "match":
		return Term{Field: field, Op: OpMatch}, nil
	case op == "contains":
		return Term{Field: field, Op: OpContains}, nil
	case strings.HasPrefix(op, "similarity>="):
		raw := strings.TrimPrefix(op, "similarity>=")
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Term{}, fmt.Errorf("invalid similarity threshold %q", raw)
		}
		if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
			return Term{}, fmt.Errorf("similarity threshold %v outside [0,1]", threshold)
		}
		return Term{Field: field, Op: OpSimilarity, Threshold: threshold}, nil
	default:
		return Term{}, fmt.Errorf("unknown operator %q", op)
	}
}

type compiledRule struct {
	rule Rule
	expr Expr
}

// Filter evaluates an ordered rule list; the first rule that holds wins.
type Filter struct {
	rules []compiledRule
}

// NewFilter parses every rule up front. Any malformed rule fails the whole
// filter; all parse errors are reported together.
func NewFilter(rules []Rule) (*Filter, error) {
	f := &Filter{rules: make([]compiledRule, 0, len(rules))}

	var errs []error
	for _, rule := range rules {
		expr, err := ParseRule(rule.Filter)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		f.rules = append(f.rules, compiledRule{rule: rule, expr: expr})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return f, nil
}

// Evaluate returns the reason of the first rule the scores satisfy. ok is
// false when no rule does, which simply means the candidate is rejected.
func (f *Filter) Evaluate(s Scores) (reason string, ok bool) {
	for _, cr := range f.rules {
		if cr.expr.Eval(s) {
			return cr.rule.ReasonText(), true
		}
	}
	return "", false
}

// Rules returns the configured rules in evaluation order.
func (f *Filter) Rules() []Rule {
	rules := make([]Rule, len(f.rules))
	for i, cr := range f.rules {
		rules[i] = cr.rule
	}
	return rules
}

// Explain returns the parsed form of each rule, showing the grouping.
func (f *Filter) Explain() []string {
	out := make([]string, len(f.rules))
	for i, cr := range f.rules {
		out[i] = cr.expr.String()
	}
	return out
}
