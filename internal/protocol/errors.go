package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidLength    = errors.New("protocol: invalid payload length")
	ErrInvalidField     = errors.New("protocol: invalid payload field")
	ErrInvalidType      = errors.New("protocol: invalid message type")
	ErrAdvertisedLength = errors.New("protocol: advertised length mismatch")
)

// LengthError reports a payload whose length falls outside its kind's range.
type LengthError struct {
	Type   uint8
	Length int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("protocol: invalid payload length %d for message type %d", e.Length, e.Type)
}

func (e *LengthError) Unwrap() error { return ErrInvalidLength }

// FieldError reports a fixed-width field that could not be rebuilt from its byte span.
type FieldError struct {
	Type  uint8
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("protocol: invalid field %q for message type %d", e.Field, e.Type)
}

func (e *FieldError) Unwrap() error { return ErrInvalidField }

// TypeError reports a header whose type does not match the kind being decoded.
type TypeError struct {
	Advertised uint8
	Expected   uint8
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("protocol: advertised message type %d, expected %d", e.Advertised, e.Expected)
}

func (e *TypeError) Unwrap() error { return ErrInvalidType }

// AdvertisedLengthError reports a header length that disagrees with the payload handed over.
type AdvertisedLengthError struct {
	Type       uint8
	Advertised int
	Actual     int
}

func (e *AdvertisedLengthError) Error() string {
	return fmt.Sprintf(
		"protocol: message type %d advertised length %d, got %d",
		e.Type,
		e.Advertised,
		e.Actual,
	)
}

func (e *AdvertisedLengthError) Unwrap() error { return ErrAdvertisedLength }
