package model

import (
	"fmt"
	"strings"
)

// FieldProblem describes one invalid field of a print request.
type FieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when an order cannot be built from the input.
// It is never retried and nothing is dispatched.
type ValidationError struct {
	Problems []FieldProblem `json:"problems"`
}

func (e *ValidationError) Add(field, message string) {
	e.Problems = append(e.Problems, FieldProblem{Field: field, Message: message})
}

func (e *ValidationError) HasProblems() bool {
	return len(e.Problems) > 0
}

// merge copies the problems of other under a field prefix such as "items[2]".
func (e *ValidationError) merge(prefix string, other *ValidationError) {
	for _, p := range other.Problems {
		e.Add(prefix+"."+p.Field, p.Message)
	}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("%s %s", p.Field, p.Message))
	}
	return "invalid order: " + strings.Join(parts, "; ")
}
