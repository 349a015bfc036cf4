package encounter

import "errors"

// Sentinel errors for encounter definitions and controllers.
var (
	ErrEmptyName          = errors.New("empty encounter name")
	ErrNoPhases           = errors.New("encounter has no phases")
	ErrTooManyPhases      = errors.New("too many phases")
	ErrUnknownPhase       = errors.New("unknown phase")
	ErrUnknownSequence    = errors.New("unknown sequence")
	ErrUnknownSignal      = errors.New("unknown signal")
	ErrEmptySequence      = errors.New("sequence has no steps")
	ErrNegativeDelay      = errors.New("negative delay")
	ErrDuplicateAbility   = errors.New("duplicate cooldown ability")
	ErrInvalidRange       = errors.New("invalid cooldown reset range")
	ErrUnknownAction      = errors.New("unknown step action")
	ErrMissingCondition   = errors.New("exit rule without condition")
	ErrNilEngine          = errors.New("nil engine")
	ErrNilDefinition      = errors.New("nil definition")
	ErrUnknownAbility     = errors.New("unknown cooldown ability")
	ErrControllerReleased = errors.New("controller released")
)
