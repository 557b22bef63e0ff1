// internal/errors/errors.go
package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	SyntaxError ErrorType = "SyntaxError"
	CheckError  ErrorType = "CheckError"
	BuildError  ErrorType = "BuildError"
	PassError   ErrorType = "PassError"
)

// SourceLocation represents a location in source code
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// CompileError represents an error with source location information
type CompileError struct {
	Type     ErrorType
	Message  string
	Location SourceLocation
	Source   string // The source line where error occurred
}

// Error implements the error interface
func (e *CompileError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s", e.Type, e.Message))

	if e.Location.Line > 0 {
		if e.Location.File != "" {
			sb.WriteString(fmt.Sprintf("\n  at %s:%d", e.Location.File, e.Location.Line))
		} else {
			sb.WriteString(fmt.Sprintf("\n  at line %d", e.Location.Line))
		}

		// Show source line if available
		if e.Source != "" {
			sb.WriteString(fmt.Sprintf("\n\n  %d | %s", e.Location.Line, e.Source))
			if e.Location.Column > 0 {
				sb.WriteString(fmt.Sprintf("\n  %s", strings.Repeat(" ", len(fmt.Sprintf("%d | ", e.Location.Line)))))
				sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
				sb.WriteString("^")
			}
		}
	}

	return sb.String()
}

// NewSyntaxError creates a new syntax error
func NewSyntaxError(message string, line int) *CompileError {
	return &CompileError{
		Type:    SyntaxError,
		Message: message,
		Location: SourceLocation{
			Line: line,
		},
	}
}

// NewCheckError creates a new semantic-check error
func NewCheckError(message string, line int) *CompileError {
	return &CompileError{
		Type:    CheckError,
		Message: message,
		Location: SourceLocation{
			Line: line,
		},
	}
}

// NewBuildError creates a new IR-construction error
func NewBuildError(message string, line int) *CompileError {
	return &CompileError{
		Type:    BuildError,
		Message: message,
		Location: SourceLocation{
			Line: line,
		},
	}
}

// NewPassError creates a new optimization-pass error
func NewPassError(message string) *CompileError {
	return &CompileError{
		Type:    PassError,
		Message: message,
	}
}

// WithFile adds the source file name to the error
func (e *CompileError) WithFile(file string) *CompileError {
	e.Location.File = file
	return e
}

// WithSource adds source code context to the error
func (e *CompileError) WithSource(source string) *CompileError {
	e.Source = source
	return e
}
