package query

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Function represents a scalar function that can be evaluated
type Function interface {
	// Name returns the function name (case-insensitive)
	Name() string
	// MinArity returns the minimum number of arguments (-1 for variadic with no minimum)
	MinArity() int
	// MaxArity returns the maximum number of arguments (-1 for unlimited)
	MaxArity() int
	// Evaluate evaluates the function with the given arguments
	Evaluate(args []interface{}) (interface{}, error)
}

// Named is anything registered by name: scalar, aggregate, window and
// table-valued functions
type Named interface {
	Name() string
}

// Registry manages function lookup and registration
type Registry[T Named] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewRegistry creates an empty registry
func NewRegistry[T Named]() *Registry[T] {
	return &Registry[T]{items: make(map[string]T)}
}

// Register registers a function, replacing any function of the same name
func (r *Registry[T]) Register(f T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[strings.ToUpper(f.Name())] = f
}

// Get retrieves a function by name (case-insensitive)
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, exists := r.items[strings.ToUpper(name)]
	return f, exists
}

// Names returns the registered names in sorted order
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone copies the registry so an engine can extend it privately
func (r *Registry[T]) Clone() *Registry[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := NewRegistry[T]()
	for k, v := range r.items {
		c.items[k] = v
	}
	return c
}

// FunctionRegistry holds scalar functions
type FunctionRegistry = Registry[Function]

// NewFunctionRegistry creates a new function registry
func NewFunctionRegistry() *FunctionRegistry {
	return NewRegistry[Function]()
}

// globalRegistry is the default function registry. Engines start from a
// clone of it.
var globalRegistry *FunctionRegistry

func init() {
	globalRegistry = NewFunctionRegistry()

	// Register string functions
	globalRegistry.Register(&UpperFunc{})
	globalRegistry.Register(&LowerFunc{})
	globalRegistry.Register(&ConcatFunc{})
	globalRegistry.Register(&LengthFunc{})
	globalRegistry.Register(&TrimFunc{})
	globalRegistry.Register(&LTrimFunc{})
	globalRegistry.Register(&RTrimFunc{})
	globalRegistry.Register(&SubstringFunc{})
	globalRegistry.Register(&ReplaceFunc{})
	globalRegistry.Register(&SplitFunc{})
	globalRegistry.Register(&ReverseFunc{})
	globalRegistry.Register(&ContainsFunc{})
	globalRegistry.Register(&StartsWithFunc{})
	globalRegistry.Register(&EndsWithFunc{})
	globalRegistry.Register(&RepeatFunc{})
	globalRegistry.Register(&LeftFunc{})
	globalRegistry.Register(&RightFunc{})
	globalRegistry.Register(&PadFunc{name: "LPAD", left: true})
	globalRegistry.Register(&PadFunc{name: "RPAD"})

	// Register math functions
	globalRegistry.Register(&AbsFunc{})
	globalRegistry.Register(&RoundFunc{})
	globalRegistry.Register(&FloorFunc{})
	globalRegistry.Register(&CeilFunc{})
	globalRegistry.Register(&ModFunc{})
	globalRegistry.Register(&SqrtFunc{})
	globalRegistry.Register(&PowFunc{})
	globalRegistry.Register(&SignFunc{})
	globalRegistry.Register(&TruncFunc{})
	globalRegistry.Register(&RandomFunc{})
	globalRegistry.Register(&LogFunc{})
	globalRegistry.Register(&ExpFunc{})
	globalRegistry.Register(&ExtremumFunc{name: "LEAST", sign: -1})
	globalRegistry.Register(&ExtremumFunc{name: "GREATEST", sign: 1})
	globalRegistry.Register(&DistanceFunc{})

	// Register date/time functions
	globalRegistry.Register(&CurrentDateFunc{})
	globalRegistry.Register(&CurrentTimeFunc{})
	globalRegistry.Register(&DateFunc{})
	globalRegistry.Register(&TimeFunc{})
	globalRegistry.Register(&DateTimeFunc{})
	globalRegistry.Register(&ExtractFunc{})
	globalRegistry.Register(&DateTruncFunc{})
	globalRegistry.Register(&DateAddFunc{})
	globalRegistry.Register(&DateSubFunc{})
	globalRegistry.Register(&DateDiffFunc{})
	globalRegistry.Register(&AgeFunc{})
	globalRegistry.Register(&DurationFunc{})
	globalRegistry.Register(&YearFunc{})
	globalRegistry.Register(&MonthFunc{})

	// Register type conversion functions
	globalRegistry.Register(&CastFunc{})
	globalRegistry.Register(&TryCastFunc{})
	globalRegistry.Register(&ToStringFunc{})
	globalRegistry.Register(&ToNumberFunc{})
	globalRegistry.Register(&ToDateFunc{})
	globalRegistry.Register(&JSONFunc{})

	// Register conditional functions
	globalRegistry.Register(&CoalesceFunc{})
	globalRegistry.Register(&NullIfFunc{})
	globalRegistry.Register(&IfFunc{})
}

// GetGlobalRegistry returns the global function registry
func GetGlobalRegistry() *FunctionRegistry {
	return globalRegistry
}

// checkArity validates an argument count against a function's bounds
func checkArity(f Function, n int) error {
	if min := f.MinArity(); min >= 0 && n < min {
		return fmt.Errorf("%s: expected at least %d arguments, got %d", f.Name(), min, n)
	}
	if max := f.MaxArity(); max >= 0 && n > max {
		return fmt.Errorf("%s: expected at most %d arguments, got %d", f.Name(), max, n)
	}
	return nil
}

// Helper function to convert value to string
func valueToString(v interface{}) (string, error) {
	switch val := normalizeValue(v).(type) {
	case nil:
		return "", fmt.Errorf("cannot convert null to string")
	case string, float64, bool, time.Time:
		return toString(val), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", v)
	}
}

// Helper function to convert value to number
func valueToNumber(v interface{}) (float64, error) {
	if isStrictNull(v) {
		return 0, fmt.Errorf("cannot convert null to number")
	}
	n, ok := toNumber(v)
	if !ok {
		return 0, fmt.Errorf("cannot convert %v to number", v)
	}
	return n, nil
}

// Helper function to convert value to an integer
func valueToInt(v interface{}) (int, error) {
	n, err := valueToNumber(v)
	if err != nil {
		return 0, err
	}
	if math.IsInf(n, 0) {
		return 0, fmt.Errorf("cannot convert %v to integer", v)
	}
	return int(n), nil
}

// Helper function to convert value to a time
func valueToTime(v interface{}) (time.Time, error) {
	switch val := normalizeValue(v).(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, fmt.Errorf("invalid date")
		}
		return val, nil
	case string:
		if t, ok := parseDateString(strings.TrimSpace(val)); ok {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("cannot parse date: %s", val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return time.Time{}, fmt.Errorf("invalid date")
		}
		return time.UnixMilli(int64(val)).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to date", v)
}
