package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrSessionExpired   = errors.New("session expired")
	ErrAccessDenied     = errors.New("access denied")
	ErrSubmitInProgress = errors.New("submit already in progress")
	ErrFinalStep        = errors.New("already on the final step; submit instead")
	ErrInvalidStep      = errors.New("invalid step")
	ErrInvalidPhoto     = errors.New("invalid photo")
	ErrWizardClosed     = errors.New("wizard closed")
)
