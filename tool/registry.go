package tool

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agentloom/agentloom/logging"
)

// Registry holds tool definitions and executes them with full parameter
// validation. Execute never lets a handler panic escape; failures come back
// inside the Result envelope.
type Registry struct {
	tools  map[string]Definition
	logger logging.Logger
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		tools:  make(map[string]Definition),
		logger: opts.Logger,
	}
}

// Register adds or replaces a tool definition.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool definition must have a name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q must have a handler", def.Name)
	}
	r.tools[def.Name] = def
	return nil
}

// Get returns a tool definition by name.
func (r *Registry) Get(name string) (Definition, bool) {
	def, ok := r.tools[name]
	return def, ok
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns all registered definitions sorted by name.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.tools))
	for _, name := range r.Names() {
		defs = append(defs, r.tools[name])
	}
	return defs
}

// ForAgent resolves an agent's requested tool names plus every
// always-available tool. Unknown names are logged and dropped, never fatal.
func (r *Registry) ForAgent(requested []string) []Definition {
	seen := make(map[string]struct{})
	var defs []Definition
	for _, name := range requested {
		def, ok := r.tools[name]
		if !ok {
			r.logger.Warn("requested tool not registered, skipping", "tool", name)
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		defs = append(defs, def)
	}
	for _, name := range r.Names() {
		def := r.tools[name]
		if !def.AlwaysAvailable {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		defs = append(defs, def)
	}
	return defs
}

// Execute validates params against the definition, applies defaults, runs the
// handler, and wraps the outcome in a Result. Validation reports every
// violation at once rather than stopping at the first.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) Result {
	start := time.Now()

	def, ok := r.tools[name]
	if !ok {
		return Result{
			Error:         fmt.Sprintf("tool %q is not registered", name),
			ExecutionTime: time.Since(start).Seconds(),
		}
	}

	validated, err := validateParams(def, params)
	if err != nil {
		return Result{
			Error:         err.Error(),
			ExecutionTime: time.Since(start).Seconds(),
		}
	}

	value, err := r.invoke(ctx, def, validated)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		r.logger.Warn("tool execution failed", "tool", name, "error", err)
		return Result{Error: err.Error(), ExecutionTime: elapsed}
	}
	return Result{Value: value, Success: true, ExecutionTime: elapsed}
}

func (r *Registry) invoke(ctx context.Context, def Definition, params map[string]any) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool %q panicked: %v", def.Name, rec)
		}
	}()
	return def.Handler(ctx, params)
}

// validateParams checks required presence, enum membership, and type
// compatibility, applying defaults for absent optionals. All violations are
// collected and reported together.
func validateParams(def Definition, params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	known := make(map[string]struct{}, len(def.Parameters))
	var violations []string

	for _, p := range def.Parameters {
		known[p.Name] = struct{}{}
		raw, present := params[p.Name]
		if !present {
			if p.Required {
				violations = append(violations, fmt.Sprintf("missing required parameter %q", p.Name))
				continue
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}
		coerced, err := coerce(raw, p.Type)
		if err != nil {
			violations = append(violations, fmt.Sprintf("parameter %q: %v", p.Name, err))
			continue
		}
		if len(p.Enum) > 0 && !enumContains(p.Enum, coerced) {
			violations = append(violations, fmt.Sprintf("parameter %q: value %v not in allowed set", p.Name, coerced))
			continue
		}
		out[p.Name] = coerced
	}

	for name, raw := range params {
		if _, ok := known[name]; !ok {
			out[name] = raw
		}
	}

	if len(violations) > 0 {
		return nil, fmt.Errorf("invalid parameters for tool %q: %s", def.Name, strings.Join(violations, "; "))
	}
	return out, nil
}

// coerce bends a raw value toward the declared parameter type. String sources
// are parsed for numeric and boolean targets because the permissive key:value
// tool grammar delivers everything as strings.
func coerce(raw any, typ string) (any, error) {
	switch typ {
	case "", "any":
		return raw, nil
	case "string":
		switch v := raw.(type) {
		case string:
			return v, nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	case "integer", "int":
		switch v := raw.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v == float64(int(v)) {
				return int(v), nil
			}
			return nil, fmt.Errorf("expected integer, got %v", v)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("expected integer, got %q", v)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", raw)
		}
	case "number", "float":
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("expected number, got %q", v)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("expected number, got %T", raw)
		}
	case "boolean", "bool":
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("expected boolean, got %q", v)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("expected boolean, got %T", raw)
		}
	case "object":
		if v, ok := raw.(map[string]any); ok {
			return v, nil
		}
		return nil, fmt.Errorf("expected object, got %T", raw)
	case "array":
		if v, ok := raw.([]any); ok {
			return v, nil
		}
		return nil, fmt.Errorf("expected array, got %T", raw)
	default:
		return raw, nil
	}
}

func enumContains(enum []any, value any) bool {
	for _, e := range enum {
		if fmt.Sprintf("%v", e) == fmt.Sprintf("%v", value) {
			return true
		}
	}
	return false
}
