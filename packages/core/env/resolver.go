package env

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/verif/packages/builtin"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver expands {{name}}, {{$ENV_VAR}} and {{func(args)}} placeholders
// in suite values. Unresolvable placeholders are left untouched.
type Resolver struct {
	variables map[string]any
	funcs     *builtin.Registry
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		funcs:     builtin.NewRegistry(),
	}
}

// SetWarnFunc sets a function to be called when a placeholder cannot be resolved
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	if r.warnFunc != nil {
		r.warnFunc(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.variables[name] = value
}

func (r *Resolver) GetVariable(name string) (any, bool) {
	v, ok := r.variables[name]
	return v, ok
}

func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		value, ok := r.lookup(strings.TrimSpace(match[2 : len(match)-2]))
		if !ok {
			return match
		}
		return value
	})
}

func (r *Resolver) lookup(expr string) (string, bool) {
	if strings.HasPrefix(expr, "$") {
		name := expr[1:]
		if val, ok := os.LookupEnv(name); ok {
			return val, true
		}
		r.warn("unresolved environment variable: $%s", name)
		return "", false
	}

	if strings.Contains(expr, "(") {
		result, ok, err := r.funcs.Call(expr)
		if err != nil {
			r.warn("function call %s failed: %v", expr, err)
			return "", false
		}
		if !ok {
			r.warn("unresolved function call: %s", expr)
			return "", false
		}
		return fmt.Sprintf("%v", result), true
	}

	if val, ok := r.variables[expr]; ok {
		return fmt.Sprintf("%v", val), true
	}

	r.warn("unresolved variable: %s", expr)
	return "", false
}

// Unresolved lists the placeholders in input that would survive Resolve.
func (r *Resolver) Unresolved(input string) []string {
	var names []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		switch {
		case strings.HasPrefix(expr, "$"):
			if _, ok := os.LookupEnv(expr[1:]); ok {
				continue
			}
		case strings.Contains(expr, "("):
			continue
		default:
			if _, ok := r.variables[expr]; ok {
				continue
			}
		}
		names = append(names, expr)
	}
	return names
}
