// Package domain contains pure, dependency-light domain models and types
// for trajectory agreement scoring.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"time"
)

// Key represents a type-safe generic key for accessing values in State.
// The type parameter T ensures compile-time type safety when getting and
// setting values, eliminating the need for runtime type assertions.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
// This function is provided for creating keys outside of the domain package.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the string form of the key.
func (k Key[T]) Name() string { return k.name }

// Predefined state keys used while scoring one repetition.
var (
	// KeyTemplate stores the reference trajectory every repetition is compared to.
	KeyTemplate = Key[Trajectory]{"template"}

	// KeyCandidate stores the repetition trajectory being scored.
	KeyCandidate = Key[Trajectory]{"candidate"}

	// KeyRepetitionIndex stores the zero-based position of the candidate.
	KeyRepetitionIndex = Key[int]{"repetition_index"}

	// KeyThresholds stores per-channel tolerance thresholds.
	KeyThresholds = Key[map[string]Thresholds]{"thresholds"}

	// KeyPairingScores stores the NNS result of every configured pairing.
	KeyPairingScores = Key[[]PairingScore]{"pairing_scores"}

	// KeyRepetitionScore stores the aggregated score of the repetition.
	KeyRepetitionScore = Key[*RepetitionScore]{"repetition_score"}

	// Execution context keys for tracking metadata across a batch.

	// KeyRunID stores the unique identifier of the analysis run.
	KeyRunID = Key[string]{"execution.run_id"}

	// KeyDataset stores the name of the dataset being analyzed.
	KeyDataset = Key[string]{"execution.dataset"}
)

// deepCopyValue creates a deep copy of a value to ensure true immutability.
// It handles slices, maps, and other reference types that would otherwise
// allow external modification of State data. Errors are immutable by
// convention and are returned as-is so errors.Is keeps working.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}

	switch val := value.(type) {
	case time.Time:
		return val
	case error:
		return val
	case []float64:
		return slices.Clone(val)
	case []string:
		return slices.Clone(val)
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return value
		}
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			setCopy(newSlice.Index(i), v.Index(i))
		}
		return newSlice.Interface()

	case reflect.Map:
		if v.IsNil() {
			return value
		}
		newMap := reflect.MakeMapWithSize(v.Type(), v.Len())
		for _, key := range v.MapKeys() {
			copiedKey := deepCopyValue(key.Interface())
			copiedValue := reflect.New(v.Type().Elem()).Elem()
			setCopy(copiedValue, v.MapIndex(key))
			newMap.SetMapIndex(reflect.ValueOf(copiedKey), copiedValue)
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return v.Interface()
		}
		newPtr := reflect.New(v.Elem().Type())
		setCopy(newPtr.Elem(), v.Elem())
		return newPtr.Interface()

	case reflect.Struct:
		// Unexported fields are left zero; exported fields are deep copied.
		newStruct := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if newStruct.Field(i).CanSet() {
				setCopy(newStruct.Field(i), v.Field(i))
			}
		}
		return newStruct.Interface()

	default:
		return value
	}
}

// setCopy stores a deep copy of src into dst, leaving dst zero when src is a
// nil interface.
func setCopy(dst, src reflect.Value) {
	if src.Kind() == reflect.Interface && src.IsNil() {
		return
	}
	copied := deepCopyValue(src.Interface())
	if copied == nil {
		return
	}
	dst.Set(reflect.ValueOf(copied))
}

// State represents an immutable collection of scoring data that flows
// through a pipeline. It uses copy-on-write semantics to ensure
// thread-safety and prevent unintended mutations. State is the primary
// data structure for passing information between Units.
type State struct {
	// data holds the key-value pairs that make up the state.
	// It is unexported to maintain immutability guarantees.
	data map[string]any
}

// NewState creates a new empty State.
// The returned State is ready to use and can be safely shared across
// goroutines.
func NewState() State {
	return State{
		data: make(map[string]any),
	}
}

// Get retrieves a value from the State with compile-time type safety.
// It returns the value and a boolean indicating whether the key exists
// and contains a value of the correct type. The returned value is a deep
// copy to maintain immutability.
//
// Example:
//
//	template, ok := Get(state, KeyTemplate)
//	if !ok {
//	    // handle missing value
//	}
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}

	copied := deepCopyValue(value)
	val, ok := copied.(T)
	return val, ok
}

// MustGet retrieves a value like Get but reports a StateError when the key
// is missing or holds a value of another type.
func MustGet[T any](s State, key Key[T]) (T, error) {
	val, ok := Get(s, key)
	if !ok {
		return val, NewStateError(key.name, "Get", ErrKeyNotFound)
	}
	return val, nil
}

// With creates a new State with the specified key-value pair added or
// updated. It implements copy-on-write semantics, returning a new State
// instance while leaving the original unchanged.
//
// Example:
//
//	newState := With(state, KeyRepetitionIndex, 3)
func With[T any](s State, key Key[T], value T) State {
	newData := maps.Clone(s.data)
	if newData == nil {
		newData = make(map[string]any)
	}
	newData[key.name] = deepCopyValue(value)
	return State{data: newData}
}

// WithMultiple creates a new State with multiple key-value pairs added
// or updated. It is more efficient than chaining multiple With calls as
// it performs a single clone operation.
func (s State) WithMultiple(updates map[string]any) State {
	newData := maps.Clone(s.data)
	if newData == nil {
		newData = make(map[string]any, len(updates))
	}
	for k, v := range updates {
		newData[k] = deepCopyValue(v)
	}
	return State{data: newData}
}

// Keys returns all keys present in the State.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// String returns a string representation of the State for debugging purposes.
func (s State) String() string {
	return fmt.Sprintf("State%v", s.data)
}

// ExecutionContext contains metadata about the current analysis run that
// flows through the State. It gives middleware consistent access to
// run metadata for metrics and tracing.
type ExecutionContext struct {
	// RunID uniquely identifies this analysis run.
	RunID string

	// Dataset names the movement dataset being analyzed.
	Dataset string
}

// WithExecutionContext creates a new State with execution context metadata.
func (s State) WithExecutionContext(ctx ExecutionContext) State {
	return s.WithMultiple(map[string]any{
		KeyRunID.name:   ctx.RunID,
		KeyDataset.name: ctx.Dataset,
	})
}

// GetExecutionContext extracts execution context metadata from the State.
// The boolean is false when either field is missing.
func (s State) GetExecutionContext() (ExecutionContext, bool) {
	runID, ok1 := Get(s, KeyRunID)
	dataset, ok2 := Get(s, KeyDataset)
	if !ok1 || !ok2 {
		return ExecutionContext{}, false
	}
	return ExecutionContext{RunID: runID, Dataset: dataset}, true
}
