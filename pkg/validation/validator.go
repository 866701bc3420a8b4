// Package validation checks API request payloads before they reach the
// stores, so handlers reject malformed input with a clear message.
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate

	MaxPIDValueLength  = 255
	MaxPIDTypeLength   = 32
	MaxActorLength     = 128
	MaxTraversalDepth  = 64
	MaxRelationNameLen = 64

	// PID types and relation names: lowercase identifier, e.g. "doi", "recid"
	pidTypePattern      = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	relationNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

func init() {
	validate = validator.New()
}

// PIDRequest represents a request to mint a persistent identifier
type PIDRequest struct {
	Type  string `json:"type" validate:"required,min=1,max=32"`
	Value string `json:"value" validate:"required,min=1,max=255"`
}

// RelationRequest represents a request to create or remove a relation
type RelationRequest struct {
	ParentID     string `json:"parent_id" validate:"required,uuid4"`
	ChildID      string `json:"child_id" validate:"required,uuid4"`
	RelationType string `json:"relation_type" validate:"required,min=1,max=64"`
	Index        *int   `json:"index" validate:"omitempty,min=0"`
}

// StatusRequest represents a request to change a PID's status
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=N K R M D"`
}

// RedirectRequest represents a request to redirect one PID to another
type RedirectRequest struct {
	TargetID string `json:"target_id" validate:"required,uuid4"`
}

// TraverseRequest represents a graph traversal query
type TraverseRequest struct {
	RelationType string `json:"relation_type" validate:"required,min=1,max=64"`
	Direction    string `json:"direction" validate:"required,oneof=down up"`
	MaxDepth     int    `json:"max_depth" validate:"min=0,max=64"`
}

// ValidatePIDRequest validates a PID mint request
func ValidatePIDRequest(req *PIDRequest) error {
	if req == nil {
		return errors.New("pid request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	if !pidTypePattern.MatchString(req.Type) {
		return fmt.Errorf("Type: '%s' is invalid (lowercase letters, digits and underscore, starting with a letter)", req.Type)
	}
	return nil
}

// ValidateRelationRequest validates a relation mutation request
func ValidateRelationRequest(req *RelationRequest) error {
	if req == nil {
		return errors.New("relation request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	if !relationNamePattern.MatchString(req.RelationType) {
		return fmt.Errorf("RelationType: '%s' is invalid (lowercase letters, digits and underscore, starting with a letter)", req.RelationType)
	}
	if req.ParentID == req.ChildID {
		return errors.New("ParentID: parent and child must differ")
	}
	return nil
}

// ValidateStatusRequest validates a status change request
func ValidateStatusRequest(req *StatusRequest) error {
	if req == nil {
		return errors.New("status request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateRedirectRequest validates a redirect request
func ValidateRedirectRequest(req *RedirectRequest) error {
	if req == nil {
		return errors.New("redirect request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateTraverseRequest validates a traversal query
func ValidateTraverseRequest(req *TraverseRequest) error {
	if req == nil {
		return errors.New("traverse request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors to a user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	for _, e := range validationErrs {
		field := e.Field()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "uuid4":
			return fmt.Errorf("%s: must be a valid UUID", field)
		case "oneof":
			return fmt.Errorf("%s: must be one of %s", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}

	return err
}
