package flow

import (
	stderrors "errors"
	"fmt"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeGraphIntegrity      = "STATUSFLOW_GRAPH_INTEGRITY"
	ErrCodeUnknownState        = "STATUSFLOW_UNKNOWN_STATE"
	ErrCodeUnknownItemType     = "STATUSFLOW_UNKNOWN_ITEM_TYPE"
	ErrCodeUnknownRole         = "STATUSFLOW_UNKNOWN_ROLE"
	ErrCodeActionNotAvailable  = "STATUSFLOW_ACTION_NOT_AVAILABLE"
	ErrCodeActionNotRegistered = "STATUSFLOW_ACTION_NOT_REGISTERED"
	ErrCodeGuardRejected       = "STATUSFLOW_GUARD_REJECTED"
	ErrCodeActionFailed        = "STATUSFLOW_ACTION_FAILED"
)

var (
	// ErrGraphIntegrity marks configuration defects found while building the
	// graph, the role bindings or the engine. It must abort startup.
	ErrGraphIntegrity = apperrors.New("graph integrity violation", apperrors.CategoryValidation).
				WithTextCode(ErrCodeGraphIntegrity)
	ErrUnknownState = apperrors.New("unknown state", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeUnknownState)
	ErrUnknownItemType = apperrors.New("unknown item type", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeUnknownItemType)
	ErrUnknownRole = apperrors.New("unknown role", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeUnknownRole)
	ErrActionNotAvailable = apperrors.New("action not available", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeActionNotAvailable)
	ErrActionNotRegistered = apperrors.New("action executor not registered", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeActionNotRegistered)
	ErrGuardRejected = apperrors.New("guard rejected", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeGuardRejected)
)

func cloneRuntimeError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	if base == nil {
		base = ErrGraphIntegrity
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// integrityViolation describes a single offending state.
type integrityViolation struct {
	State  string
	Reason string
}

func (v integrityViolation) Error() string {
	return fmt.Sprintf("state %s: %s", v.State, v.Reason)
}

// ErrorCode returns the text code carried by a go-errors value in the chain.
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// HasErrorCode reports whether err carries the given text code.
func HasErrorCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// IsGraphIntegrity reports configuration defects.
func IsGraphIntegrity(err error) bool {
	return HasErrorCode(err, ErrCodeGraphIntegrity)
}

// OffendingStates returns the states named by a graph integrity error.
func OffendingStates(err error) []string {
	var ge *apperrors.Error
	if !stderrors.As(err, &ge) || ge.Metadata == nil {
		return nil
	}
	states, _ := ge.Metadata["states"].([]string)
	return states
}
