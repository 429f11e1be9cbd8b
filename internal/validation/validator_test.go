package validation

import (
	"errors"
	"testing"

	"recipehub/internal/errcode"
)

type sample struct {
	Title string `validate:"required,min=3,max=5"`
	Email string `validate:"omitempty,email"`
}

func TestStruct_UsesTagSpecificMessage(t *testing.T) {
	msgs := Messages{
		"Title.required": "Title is required",
		"Title":          "Title must be between 3 and 5 characters",
	}

	err := Struct(&sample{}, msgs)
	if !errors.Is(err, errcode.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err.Error() != "Title is required" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	err = Struct(&sample{Title: "toolong"}, msgs)
	if err == nil || err.Error() != "Title must be between 3 and 5 characters" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestStruct_FallsBackToDefaultMessage(t *testing.T) {
	err := Struct(&sample{Title: "okay", Email: "nope"}, nil)
	if err == nil || err.Error() != "Email must be a valid email address" {
		t.Fatalf("unexpected error %v", err)
	}
	if code := errcode.CodeOf(err); code != errcode.ValidationFailed {
		t.Fatalf("expected code %d, got %d", errcode.ValidationFailed, code)
	}
}

func TestStruct_Valid(t *testing.T) {
	if err := Struct(&sample{Title: "abc"}, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
