package main

import (
	"encoding/json"
	"errors"
	"io"

	pkgerrors "github.com/angelmondragon/inventory-tracker/pkg/errors"
	"github.com/angelmondragon/inventory-tracker/pkg/types"
)

// errorEnvelope converts err into the JSON shape printed on failure. Codes
// raised by caller input keep their specific message; others use the public one.
func errorEnvelope(err error) types.ErrorEnvelope {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		return types.ErrorEnvelope{Error: types.APIError{Code: "COMMAND_FAILED", Message: err.Error()}}
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeDuplicateKey,
		pkgerrors.CodeDecode,
		pkgerrors.CodeEncode,
		pkgerrors.CodeRead:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	return types.ErrorEnvelope{
		Error: types.APIError{
			Code:      string(typed.Code()),
			Message:   msg,
			Retryable: meta.Retryable,
			Details:   typed.Details(),
		},
	}
}

func writeError(w io.Writer, err error) {
	enc := json.NewEncoder(w)
	_ = enc.Encode(errorEnvelope(err))
}
