/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("Person", "65f1c0ffee00000000000001")

	expected := `Person with key "65f1c0ffee00000000000001" not found`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}

	if !IsNotFound(err) {
		t.Error("IsNotFound should return true for NotFoundError")
	}
}

func TestAlreadyExistsError(t *testing.T) {
	cause := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
	err := NewAlreadyExistsError("Person", "abc", cause)

	expected := `Person with key "abc" already exists`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if !IsAlreadyExists(err) {
		t.Error("IsAlreadyExists should return true for AlreadyExistsError")
	}

	var we mongo.WriteException
	if !errors.As(err, &we) {
		t.Error("AlreadyExistsError should unwrap to the driver error")
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		message  string
		expected string
	}{
		{
			name:     "with field",
			field:    "name",
			message:  "is required",
			expected: `validation failed for field "name": is required`,
		},
		{
			name:     "without field",
			field:    "",
			message:  "missing required fields",
			expected: "validation failed: missing required fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message)

			if err.Error() != tt.expected {
				t.Errorf("Expected error message %q, got %q", tt.expected, err.Error())
			}

			if !IsValidationError(err) {
				t.Error("IsValidationError should return true for ValidationError")
			}
		})
	}
}

func TestConditionFailedError(t *testing.T) {
	err := NewConditionFailedError("save", "attribute_exists(PK)")

	expected := "condition check failed for save operation: attribute_exists(PK)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if !IsConditionFailed(err) {
		t.Error("IsConditionFailed should return true for ConditionFailedError")
	}
}

func TestStoreError(t *testing.T) {
	if NewStoreError("find", nil) != nil {
		t.Fatal("NewStoreError should return nil for a nil error")
	}

	err := NewStoreError("find", mongo.ErrClientDisconnected)

	expected := "store operation find failed: client is disconnected"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if !IsStoreError(err) {
		t.Error("IsStoreError should return true for StoreError")
	}

	if !errors.Is(err, mongo.ErrClientDisconnected) {
		t.Error("StoreError should unwrap to the driver error")
	}
}

func TestErrorWrapping(t *testing.T) {
	original := NewNotFoundError("Person", "123")
	wrapped := fmt.Errorf("find edit then save: %w", original)

	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should work with wrapped errors")
	}
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrInvalidInput,
		ErrConditionFailed,
		ErrStoreFailed,
		ErrNoIndexMap,
	}

	for i, err1 := range sentinels {
		for j, err2 := range sentinels {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v matches %v", err1, err2)
			}
		}
	}
}
