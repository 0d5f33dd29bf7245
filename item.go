package statusflow

import (
	stderrors "errors"
	"time"

	apperrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-statusflow/flow"
)

// ItemSnapshot is the item payload returned by the item backend. Type and
// Status carry backend numeric codes, PastStatuses is keyed by status code.
type ItemSnapshot struct {
	ID           string            `json:"id"`
	Type         int               `json:"type"`
	Status       int               `json:"status"`
	PastStatuses map[int]time.Time `json:"pastStatuses,omitempty"`
}

// Item is the engine item for the consignment enumerations.
type Item = flow.Item[Status, ItemType]

// Item converts the snapshot into an engine item. Unknown codes in the
// history are reported rather than dropped.
func (s ItemSnapshot) Item() (Item, error) {
	typ, err := ItemTypeFromValue(s.Type)
	if err != nil {
		return Item{}, wrapSnapshotError(err, s.ID, "type")
	}
	current, err := StatusFromValue(s.Status)
	if err != nil {
		return Item{}, wrapSnapshotError(err, s.ID, "status")
	}

	history := make(map[Status]time.Time, len(s.PastStatuses))
	for code, at := range s.PastStatuses {
		st, err := StatusFromValue(code)
		if err != nil {
			return Item{}, wrapSnapshotError(err, s.ID, "pastStatuses")
		}
		history[st] = at
	}

	return Item{
		ID:      s.ID,
		Type:    typ,
		Current: current,
		History: history,
	}, nil
}

func wrapSnapshotError(err error, id, field string) error {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.WithMetadata(map[string]any{"item_id": id, "field": field})
	}
	return err
}
