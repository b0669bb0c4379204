// Package rule implements the rule registry and the two-phase
// match/apply protocol: a rule claims a target by returning match data
// from Match, then Apply turns that claim into an installed recipe.
//
// The two-step "does this claim apply, then extract what it needs" shape
// keeps matching and recipe construction independently testable: Match
// can be probed for ambiguity without ever building a recipe, and Apply
// never has to re-derive what already matched.
package rule

import (
	"fmt"
	"strings"

	"github.com/kiln-build/kiln/internal/action"
	"github.com/kiln-build/kiln/internal/scope"
	"github.com/kiln-build/kiln/internal/target"
)

// MatchData is the opaque token a rule's Match returns to signal a claim;
// it is handed back to Apply unchanged.
type MatchData any

// Rule is the capability set {match, apply} a rule implementation
// provides. Implementers may be stateless function tables (see FuncRule)
// or closures carrying per-module state.
type Rule interface {
	// Match reports whether the rule claims t for action a, given the
	// hint it was registered under. A nil, false result means no claim.
	Match(a action.ID, t *target.Target, hint string) (MatchData, bool)
	// Apply turns a claim into a recipe bound to t for action a.
	Apply(a action.ID, t *target.Target, md MatchData) (target.Recipe, error)
}

// Fallback is an optional capability a Rule may implement to mark itself
// as a declared fallback: when it is the only claimant aside from exactly
// one non-fallback rule, the non-fallback rule wins instead of failing
// ambiguous-match. path_rule is the built-in example.
type Fallback interface {
	IsFallback() bool
}

// FuncRule adapts two functions to the Rule interface for simple,
// stateless rules.
type FuncRule struct {
	MatchFn   func(a action.ID, t *target.Target, hint string) (MatchData, bool)
	ApplyFn   func(a action.ID, t *target.Target, md MatchData) (target.Recipe, error)
	Fallback_ bool
}

func (f FuncRule) Match(a action.ID, t *target.Target, hint string) (MatchData, bool) {
	return f.MatchFn(a, t, hint)
}
func (f FuncRule) Apply(a action.ID, t *target.Target, md MatchData) (target.Recipe, error) {
	return f.ApplyFn(a, t, md)
}
func (f FuncRule) IsFallback() bool { return f.Fallback_ }

// Register installs rule under (op, targetType) at scope s, with the
// given hint and diagnostic name.
func Register(s *scope.Scope, opID uint8, typeName, hint, name string, r Rule) {
	s.Rules().Insert(scope.RuleKey{OpID: opID, TypeName: typeName}, scope.RuleEntry{Hint: hint, Name: name, Rule: r})
}

// AmbiguousMatchError reports two or more non-fallback rules claiming the
// same target, naming both (well, all) claimants.
type AmbiguousMatchError struct {
	Target string
	Names  []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous-match: %s claimed by %s", e.Target, strings.Join(e.Names, ", "))
}

// NoRuleError reports that no rule claimed the target.
type NoRuleError struct {
	Target string
	Op     uint8
}

func (e *NoRuleError) Error() string {
	return fmt.Sprintf("no-rule: no rule matches target %s for operation %d", e.Target, e.Op)
}

type candidate struct {
	rule     Rule
	data     MatchData
	name     string
	fallback bool
}

// Match performs the matching protocol: enumerate scopes from base
// upward; at each scope walk the target's type chain; a rule whose
// registered hint starts with requestedHint (always true when
// requestedHint=="") is tried. Matching stops at the first scope producing any claim — the
// same shadowing discipline variable lookup uses.
func Match(base *scope.Scope, a action.ID, t *target.Target, requestedHint string) (Rule, MatchData, error) {
	op := a.Operation()

	for cur := base; cur != nil; cur = cur.Parent() {
		var candidates []candidate
		for typ := t.Type; typ != nil; typ = typ.Base {
			entries := cur.Rules().Lookup(scope.RuleKey{OpID: op, TypeName: typ.Name})
			for _, e := range entries {
				if requestedHint != "" && !strings.HasPrefix(e.Hint, requestedHint) {
					continue
				}
				r, ok := e.Rule.(Rule)
				if !ok {
					continue
				}
				md, claimed := r.Match(a, t, e.Hint)
				if !claimed {
					continue
				}
				fb := false
				if f, ok := r.(Fallback); ok {
					fb = f.IsFallback()
				}
				candidates = append(candidates, candidate{rule: r, data: md, name: e.Name, fallback: fb})
			}
		}
		if len(candidates) == 0 {
			continue
		}
		return resolveCandidates(t, candidates)
	}
	return nil, nil, &NoRuleError{Target: t.Name, Op: op}
}

func resolveCandidates(t *target.Target, candidates []candidate) (Rule, MatchData, error) {
	var normal, fallback []candidate
	for _, c := range candidates {
		if c.fallback {
			fallback = append(fallback, c)
		} else {
			normal = append(normal, c)
		}
	}
	switch {
	case len(normal) == 1:
		c := normal[0]
		return c.rule, c.data, nil
	case len(normal) == 0 && len(fallback) >= 1:
		c := fallback[0]
		return c.rule, c.data, nil
	default:
		names := make([]string, 0, len(candidates))
		for _, c := range candidates {
			names = append(names, c.name)
		}
		return nil, nil, &AmbiguousMatchError{Target: t.Name, Names: names}
	}
}

// Apply calls r.Apply and, on success, installs the resulting recipe on
// t for action a, per recipe-override precedence: if the action already
// installed on t supersedes a, that installed recipe is kept and returned
// instead. An unrelated action (different meta or outer operation) never
// supersedes, so it always gets its own recipe.
func Apply(r Rule, a action.ID, t *target.Target, md MatchData) (target.Recipe, error) {
	existing := action.ID(t.InstalledAction())
	if existing != 0 && existing != a && existing.Supersedes(a) {
		return t.Recipe(), nil
	}
	recipe, err := r.Apply(a, t, md)
	if err != nil {
		return nil, err
	}
	t.Install(uint32(a), recipe)
	return recipe, nil
}
