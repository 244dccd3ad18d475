package pipeline

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/pantry-receipts/internal/quota"
	"github.com/joseph-ayodele/pantry-receipts/internal/vision"
)

// Code is the caller-facing error taxonomy.
type Code string

const (
	CodeQuotaExceeded      Code = "QUOTA_EXCEEDED"
	CodeNotAReceipt        Code = "NOT_A_RECEIPT"
	CodeUnreadableImage    Code = "UNREADABLE_IMAGE"
	CodeNoFoodItems        Code = "NO_FOOD_ITEMS"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeInvalidRequest     Code = "INVALID_REQUEST"
)

var messages = map[Code]string{
	CodeQuotaExceeded:      "daily scan limit reached; watch an ad or upgrade to premium for more scans",
	CodeNotAReceipt:        "the image does not look like a receipt",
	CodeUnreadableImage:    "the receipt could not be read; retake the photo in better light",
	CodeNoFoodItems:        "no food items were found on this receipt",
	CodeServiceUnavailable: "receipt scanning is temporarily unavailable",
	CodeInternal:           "something went wrong while scanning the receipt",
	CodeInvalidRequest:     "the upload is not a usable image",
}

// ScanError is returned by the orchestrator for every rejected or failed scan.
// Usage is set when the quota position is known.
type ScanError struct {
	Code    Code
	Message string
	Usage   *quota.State
	Cause   error
}

func (e *ScanError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

func newScanError(code Code, cause error) *ScanError {
	return &ScanError{Code: code, Message: messages[code], Cause: cause}
}

func (e *ScanError) withUsage(st quota.State) *ScanError {
	e.Usage = &st
	return e
}

// CodeOf extracts the taxonomy code, INTERNAL_ERROR for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var se *ScanError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

// Message is the user-facing text for a code.
func Message(code Code) string {
	return messages[code]
}

func codeForReason(r vision.Reason) Code {
	switch r {
	case vision.ReasonNotReceipt:
		return CodeNotAReceipt
	case vision.ReasonNoFoodItems:
		return CodeNoFoodItems
	default:
		return CodeUnreadableImage
	}
}
