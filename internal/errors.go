// Copyright 2020 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
)

// ErrorCode represents the platform-wide error codes that can be raised by
// SDK APIs.
type ErrorCode string

const (
	// InvalidArgument indicates that the client specified an invalid argument.
	InvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// Unauthenticated indicates that the request does not have valid
	// authentication credentials.
	Unauthenticated ErrorCode = "UNAUTHENTICATED"

	// PermissionDenied indicates that the caller does not have permission to
	// execute the specified operation.
	PermissionDenied ErrorCode = "PERMISSION_DENIED"

	// FailedPrecondition indicates that the request can not be executed in the
	// current system state, such as deleting a non-empty directory.
	FailedPrecondition ErrorCode = "FAILED_PRECONDITION"

	// OutOfRange indicates that the client specified an invalid range.
	OutOfRange ErrorCode = "OUT_OF_RANGE"

	// NotFound indicates that the requested entity was not found.
	NotFound ErrorCode = "NOT_FOUND"

	// Conflict indicates a concurrency conflict, such as a duplicate resource.
	//
	// This is the catch-all code for HTTP 409 responses that do not carry any
	// additional details to distinguish between ABORTED and ALREADY_EXISTS.
	Conflict ErrorCode = "CONFLICT"

	// Aborted indicates that the operation was aborted, typically due to a
	// concurrency issue.
	Aborted ErrorCode = "ABORTED"

	// ResourceExhausted indicates that some resource has been exhausted.
	ResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"

	// Unavailable indicates that the service is currently unavailable.
	Unavailable ErrorCode = "UNAVAILABLE"

	// DeadlineExceeded indicates that the deadline expired before the
	// operation could complete.
	DeadlineExceeded ErrorCode = "DEADLINE_EXCEEDED"

	// Cancelled indicates that the operation was cancelled by the caller.
	Cancelled ErrorCode = "CANCELLED"

	// DataLoss indicates unrecoverable data loss or corruption.
	DataLoss ErrorCode = "DATA_LOSS"

	// Internal indicates an internal server error.
	Internal ErrorCode = "INTERNAL"

	// Unknown indicates that an unknown error occurred.
	Unknown ErrorCode = "UNKNOWN"
)

// FirebaseError is an error type containing an error code string.
type FirebaseError struct {
	ErrorCode ErrorCode
	String    string
	Response  *http.Response
	Ext       map[string]interface{}
}

func (fe *FirebaseError) Error() string {
	return fe.String
}

// HasPlatformErrorCode checks if the given error contains a specific error code.
func HasPlatformErrorCode(err error, code ErrorCode) bool {
	fe, ok := err.(*FirebaseError)
	return ok && fe.ErrorCode == code
}

var httpStatusToErrorCodes = map[int]ErrorCode{
	http.StatusBadRequest:          InvalidArgument,
	http.StatusUnauthorized:        Unauthenticated,
	http.StatusForbidden:           PermissionDenied,
	http.StatusNotFound:            NotFound,
	http.StatusConflict:            Conflict,
	http.StatusTooManyRequests:     ResourceExhausted,
	http.StatusInternalServerError: Internal,
	http.StatusServiceUnavailable:  Unavailable,
}

// NewFirebaseError creates a new error from the given HTTP response.
func NewFirebaseError(resp *Response) *FirebaseError {
	code, ok := httpStatusToErrorCodes[resp.Status]
	if !ok {
		code = Unknown
	}

	return &FirebaseError{
		ErrorCode: code,
		String:    fmt.Sprintf("unexpected http response with status: %d\n%s", resp.Status, string(resp.Body)),
		Response:  resp.LowLevelResponse(),
		Ext:       make(map[string]interface{}),
	}
}

// NewFirebaseErrorOnePlatform parses the response payload as a GCP error response
// and create an error from the details extracted.
//
// If the response fails to parse, or otherwise doesn't provide any useful details
// NewFirebaseErrorOnePlatform creates an error with some sensible defaults.
func NewFirebaseErrorOnePlatform(resp *Response) *FirebaseError {
	base := NewFirebaseError(resp)

	var gcpError struct {
		Error struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	json.Unmarshal(resp.Body, &gcpError) // ignore any json parse errors at this level
	if gcpError.Error.Status != "" {
		base.ErrorCode = ErrorCode(gcpError.Error.Status)
	}
	if gcpError.Error.Message != "" {
		base.String = gcpError.Error.Message
	}

	return base
}

// NewFirebaseErrorTransport creates a new error from the given low-level
// transport failure.
//
// Deadline expiry and cancellations are reported with their dedicated codes.
// Other connection-level failures are considered transient and reported as
// Unavailable, so that callers can implement a retry policy on top.
func NewFirebaseErrorTransport(err error) *FirebaseError {
	code := Unknown
	switch {
	case errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err):
		code = DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = Cancelled
	default:
		var netErr net.Error
		if errors.As(err, &netErr) {
			code = Unavailable
		}
	}

	return &FirebaseError{
		ErrorCode: code,
		String:    fmt.Sprintf("error while making http call: %v", err),
		Ext:       make(map[string]interface{}),
	}
}
