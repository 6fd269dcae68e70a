// Package policy models the inline IAM policy granted to the API function's execution role.
package policy

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

type Effect string

const (
	Allow Effect = "Allow"
	Deny  Effect = "Deny"
)

var (
	ErrDenyStatement      = errors.New("policy: deny statements are not permitted")
	ErrDuplicateStatement = errors.New("policy: duplicate statement")
	ErrEmptyStatement     = errors.New("policy: statement needs actions and resources")
)

// Statement is one IAM policy statement.
type Statement struct {
	Effect    Effect   `yaml:"effect"`
	Actions   []string `yaml:"actions"`
	Resources []string `yaml:"resources"`
}

// Document is an ordered list of statements. Documents only ever grant: Validate
// rejects deny statements and statements that repeat an earlier one.
type Document struct {
	Name       string      `yaml:"name"`
	Statements []Statement `yaml:"statements"`
}

// API returns the access policy for the API function: configuration-store and
// key-value-store operations on every resource.
//
// The wildcard scope is deliberately broad; it is not a least-privilege grant.
func API(name string) Document {
	return Document{
		Name: name,
		Statements: []Statement{
			{
				Effect:    Allow,
				Actions:   []string{"appconfig:*", "dynamodb:*"},
				Resources: []string{"*", "arn:aws:dynamodb:*:*:table/*"},
			},
		},
	}
}

// Namespaces returns the distinct service prefixes granted by the statement, in order.
func (s Statement) Namespaces() []string {
	out := make([]string, 0, len(s.Actions))
	for _, action := range s.Actions {
		ns, _, _ := strings.Cut(action, ":")
		if ns == "" || slices.Contains(out, ns) {
			continue
		}
		out = append(out, ns)
	}
	return out
}

func (s Statement) key() string {
	actions := slices.Clone(s.Actions)
	resources := slices.Clone(s.Resources)
	slices.Sort(actions)
	slices.Sort(resources)
	return string(s.Effect) + "|" + strings.Join(actions, ",") + "|" + strings.Join(resources, ",")
}

// Validate enforces the additive-only invariant.
func (d Document) Validate() error {
	seen := make(map[string]int, len(d.Statements))
	for i, st := range d.Statements {
		if st.Effect != Allow {
			return fmt.Errorf("statement %d: %w", i, ErrDenyStatement)
		}
		if len(st.Actions) == 0 || len(st.Resources) == 0 {
			return fmt.Errorf("statement %d: %w", i, ErrEmptyStatement)
		}
		k := st.key()
		if prev, ok := seen[k]; ok {
			return fmt.Errorf("statement %d repeats statement %d: %w", i, prev, ErrDuplicateStatement)
		}
		seen[k] = i
	}
	return nil
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := Document{Name: d.Name, Statements: make([]Statement, len(d.Statements))}
	for i, st := range d.Statements {
		out.Statements[i] = Statement{
			Effect:    st.Effect,
			Actions:   slices.Clone(st.Actions),
			Resources: slices.Clone(st.Resources),
		}
	}
	return out
}
