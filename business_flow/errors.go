// Package businessflow contains the core business logic: broadcast, A/B campaigns and automation
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Authentication
	ErrIncorrectPassword      = errors.New("incorrect password")
	ErrAdminAuthNotConfigured = errors.New("admin authentication is not configured")

	// Validation
	ErrValidation               = errors.New("validation failed")
	ErrInvalidSubscription      = errors.New("invalid subscription data")
	ErrInvalidPercentageSplit   = errors.New("variant percentages must be between 1 and 99 and sum to 100")
	ErrInvalidTriggerDelay      = errors.New("trigger delay must be a positive number of hours")
	ErrAutomationUpdateRequired = errors.New("at least one field must be provided for update")

	// Dispatch
	ErrNoRecipients = errors.New("no subscribers found")

	// A/B campaigns
	ErrABCampaignNotFound       = errors.New("ab campaign not found")
	ErrABCampaignAlreadySent    = errors.New("ab campaign already sent")
	ErrABCampaignSendInProgress = errors.New("ab campaign send already in progress")

	// Automation flows
	ErrAutomationFlowNotFound   = errors.New("automation flow not found")
	ErrAutomationFlowDeleted    = errors.New("automation flow is deleted")
	ErrInvalidStatusTransition  = errors.New("invalid automation flow status transition")
	ErrAutomationTickInProgress = errors.New("automation tick already in progress")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// ErrorCode returns the BusinessError code in err's chain, or "" if none
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsAdminAuthNotConfigured(err error) bool {
	return errors.Is(err, ErrAdminAuthNotConfigured)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidSubscription) ||
		errors.Is(err, ErrInvalidPercentageSplit) ||
		errors.Is(err, ErrInvalidTriggerDelay) ||
		errors.Is(err, ErrAutomationUpdateRequired)
}

func IsNoRecipients(err error) bool {
	return errors.Is(err, ErrNoRecipients)
}

func IsABCampaignNotFound(err error) bool {
	return errors.Is(err, ErrABCampaignNotFound)
}

func IsABCampaignAlreadySent(err error) bool {
	return errors.Is(err, ErrABCampaignAlreadySent)
}

func IsABCampaignSendInProgress(err error) bool {
	return errors.Is(err, ErrABCampaignSendInProgress)
}

func IsAutomationFlowNotFound(err error) bool {
	return errors.Is(err, ErrAutomationFlowNotFound)
}

func IsAutomationFlowDeleted(err error) bool {
	return errors.Is(err, ErrAutomationFlowDeleted)
}

func IsInvalidStatusTransition(err error) bool {
	return errors.Is(err, ErrInvalidStatusTransition)
}

func IsAutomationTickInProgress(err error) bool {
	return errors.Is(err, ErrAutomationTickInProgress)
}
