// Package tools holds the tool registry, the per-request Session, the
// Executor, and the body of every tool the model can call.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

// Handler executes one tool. Handlers report every failure through the
// returned Result and never panic on bad input.
type Handler func(ctx context.Context, s *Session, args Args) Result

// Toolset is a named group of tools offered to the model in one mode.
type Toolset struct {
	Name  string
	Tools []string
}

type entry struct {
	decl    domain.ToolDeclaration
	handler Handler
	schema  *jsonschema.Schema
}

// Registry maps tool names to their declaration, compiled argument schema
// and handler.
type Registry struct {
	entries map[string]entry
}

// NewRegistry pairs declarations with handlers. The two key sets must be
// identical and every toolset may only name declared tools.
func NewRegistry(decls []domain.ToolDeclaration, handlers map[string]Handler, toolsets ...Toolset) (*Registry, error) {
	r := &Registry{entries: make(map[string]entry, len(decls))}

	var problems []string
	for _, d := range decls {
		if _, dup := r.entries[d.Name]; dup {
			problems = append(problems, "duplicate declaration "+d.Name)
			continue
		}
		h, ok := handlers[d.Name]
		if !ok {
			problems = append(problems, "no handler for "+d.Name)
			continue
		}
		schema, err := compileSchema(d)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		r.entries[d.Name] = entry{decl: d, handler: h, schema: schema}
	}
	for name := range handlers {
		if !slices.ContainsFunc(decls, func(d domain.ToolDeclaration) bool { return d.Name == name }) {
			problems = append(problems, "handler without declaration "+name)
		}
	}
	for _, ts := range toolsets {
		for _, name := range ts.Tools {
			if _, ok := r.entries[name]; !ok {
				problems = append(problems, fmt.Sprintf("toolset %s names undeclared tool %s", ts.Name, name))
			}
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, fmt.Errorf("tool registry: %s", strings.Join(problems, "; "))
	}
	return r, nil
}

func compileSchema(d domain.ToolDeclaration) (*jsonschema.Schema, error) {
	params := d.Parameters
	if params == nil {
		params = &domain.Schema{Type: domain.TypeObject}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode schema for %s: %w", d.Name, err)
	}
	schema, err := jsonschema.CompileString(d.Name+".json", string(b))
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", d.Name, err)
	}
	return schema, nil
}

// Names returns every registered tool name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declaration returns the declaration for name.
func (r *Registry) Declaration(name string) (domain.ToolDeclaration, bool) {
	e, ok := r.entries[name]
	return e.decl, ok
}

// Declarations returns the declarations of ts in toolset order.
func (r *Registry) Declarations(ts Toolset) []domain.ToolDeclaration {
	out := make([]domain.ToolDeclaration, 0, len(ts.Tools))
	for _, name := range ts.Tools {
		if e, ok := r.entries[name]; ok {
			out = append(out, e.decl)
		}
	}
	return out
}

func (r *Registry) lookup(name string) (entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// validate checks args against the tool's schema and returns a message
// listing every violation.
func (e entry) validate(args Args) error {
	err := e.schema.Validate(map[string]any(args))
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	var msgs []string
	collectLeaves(ve, &msgs)
	return errors.New(strings.Join(msgs, "; "))
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			*out = append(*out, ve.Message)
		} else {
			*out = append(*out, loc+": "+ve.Message)
		}
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}
