package service

import "errors"

var (
	// ErrInvalidCode is returned for codes that don't resolve to a referrer.
	// Malformed and nonexistent codes are deliberately indistinguishable so the
	// endpoint can't be used to probe which identifiers exist.
	ErrInvalidCode = errors.New("invalid referral code")

	// ErrSelfReferral rejects a user applying their own code.
	ErrSelfReferral = errors.New("cannot use your own referral code")

	// ErrAlreadyReferred rejects a second attribution for a user that already
	// has a referrer.
	ErrAlreadyReferred = errors.New("user already has a referrer")

	// ErrCodeGenerationExhausted means every candidate code collided within
	// the attempt bound.
	ErrCodeGenerationExhausted = errors.New("could not generate a unique referral code")

	// ErrDuplicateCustomCode rejects a vanity code already owned by another user.
	ErrDuplicateCustomCode = errors.New("referral code already taken")

	// ErrCodeAlreadySet rejects changing a code once assigned; codes are
	// immutable after first assignment.
	ErrCodeAlreadySet = errors.New("referral code already set")
)
