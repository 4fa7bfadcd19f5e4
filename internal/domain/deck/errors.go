package deck

import (
	"errors"
	"fmt"
	"strings"
)

// Violation is one failed field constraint. Field uses JSON naming, e.g. "slides[1].imageUrl".
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Message
	}
	return v.Field + ": " + v.Message
}

type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type GenerationStage string

const (
	StageRequest GenerationStage = "request"
	StageParse   GenerationStage = "parse"
	StageSchema  GenerationStage = "schema"
)

// GenerationError reports a model response that could not become a deck.
type GenerationError struct {
	Stage      GenerationStage
	Violations []Violation
	Err        error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("generation failed (%s)", e.Stage)
	if len(e.Violations) > 0 {
		parts := make([]string, 0, len(e.Violations))
		for _, v := range e.Violations {
			parts = append(parts, v.String())
		}
		msg += ": " + strings.Join(parts, "; ")
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

type ImageGenerationError struct {
	Description string
	Cause       error
}

func (e *ImageGenerationError) Error() string {
	if e.Cause == nil {
		return "image generation failed"
	}
	return "image generation failed: " + e.Cause.Error()
}

func (e *ImageGenerationError) Unwrap() error { return e.Cause }

// AuthenticationError means the provider credential is missing or was rejected.
// Callers must obtain a new credential and replay the action.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return "authentication required"
	}
	return "authentication required: " + e.Err.Error()
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return "persistence " + e.Op + " failed"
	}
	return "persistence " + e.Op + " failed: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "invalid or expired link"
	}
	return "invalid or expired link: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}
