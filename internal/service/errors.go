package service

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/teamtab/internal/calculator"
	"github.com/mmynk/teamtab/internal/money"
	"github.com/mmynk/teamtab/internal/storage"
)

// Response metadata attached to InvalidArgument errors.
const (
	headerField      = "Teamtab-Field"
	headerDifference = "Teamtab-Difference"
)

// toConnectError maps domain errors onto Connect codes.
func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	switch {
	case calculator.IsValidation(err):
		cerr := connect.NewError(connect.CodeInvalidArgument, err)
		var ve *calculator.ValidationError
		if errors.As(err, &ve) && ve.Field != "" {
			cerr.Meta().Set(headerField, ve.Field)
		}
		var mismatch *calculator.MismatchError
		if errors.As(err, &mismatch) {
			cerr.Meta().Set(headerDifference, money.Format(mismatch.Difference()))
		}
		return cerr
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// validationField returns the offending field of a validation error.
func validationField(err error) string {
	var ve *calculator.ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}

func invalidArgument(field string, err error) error {
	return &calculator.ValidationError{Field: field, Reason: err.Error()}
}
