package statusflow

import (
	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-statusflow/flow"
)

var (
	// ErrUnknownStatus is returned when a key or backend code does not name a Status.
	ErrUnknownStatus = flow.ErrUnknownState
	// ErrUnknownItemType is returned when a key or backend code does not name an ItemType.
	ErrUnknownItemType = flow.ErrUnknownItemType
)

func unknownEnumError(base *errors.Error, field string, value any) error {
	return base.Clone().WithMetadata(map[string]any{field: value})
}
