package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	CodeStorageUnavailable  Code = "STORAGE_UNAVAILABLE"
	CodeNotInitialized      Code = "NOT_INITIALIZED"
	CodeSchemaUpgradeFailed Code = "SCHEMA_UPGRADE_FAILED"
	CodeDuplicateKey        Code = "DUPLICATE_KEY"
	CodeTransactionFailed   Code = "TRANSACTION_FAILED"
	CodeDecode              Code = "DECODE_ERROR"
	CodeRead                Code = "READ_ERROR"
	CodeEncode              Code = "ENCODE_ERROR"
	CodeValidation          Code = "VALIDATION_ERROR"
)

type Metadata struct {
	Retryable     bool
	PublicMessage string
}

var metadataByCode = map[Code]Metadata{
	CodeStorageUnavailable: {
		Retryable:     false,
		PublicMessage: "storage engine unavailable",
	},
	CodeNotInitialized: {
		Retryable:     false,
		PublicMessage: "storage not initialized",
	},
	CodeSchemaUpgradeFailed: {
		Retryable:     false,
		PublicMessage: "schema upgrade failed",
	},
	CodeDuplicateKey: {
		Retryable:     false,
		PublicMessage: "record already exists",
	},
	CodeTransactionFailed: {
		Retryable:     true,
		PublicMessage: "storage transaction failed",
	},
	CodeDecode: {
		Retryable:     false,
		PublicMessage: "image could not be decoded",
	},
	CodeRead: {
		Retryable:     true,
		PublicMessage: "file could not be read",
	},
	CodeEncode: {
		Retryable:     false,
		PublicMessage: "image could not be encoded",
	},
	CodeValidation: {
		Retryable:     false,
		PublicMessage: "validation failed",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeTransactionFailed]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeTransactionFailed
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether the outermost typed error in err's chain carries code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
