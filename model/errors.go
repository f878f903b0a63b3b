package model

import "errors"

var (
	ErrUserDoesNotExist     = errors.New("user do not exist")
	ErrTestDoesNotExist     = errors.New("test do not exist")
	ErrTestAlreadyCompleted = errors.New("test already completed")
	ErrPaymentDoesNotExist  = errors.New("payment do not exist")
	ErrHandoffEmpty         = errors.New("no pending hand-off")
	ErrEmptyResult          = errors.New("empty or malformed generation result")
	ErrFeatureLocked        = errors.New("feature locked behind subscription")
	ErrUnsupportedSubject   = errors.New("subject not supported for analysis")
)
