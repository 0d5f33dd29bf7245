package catalog

import (
	"strings"

	"github.com/goliatone/go-statusflow"
	"github.com/goliatone/go-statusflow/flow"
)

// GuardConsignorVerified passes once the consignor finished identity
// verification. Callers put the consignor status in the item attributes
// under AttrConsignorStatus.
const GuardConsignorVerified = "consignor_verified"

const AttrConsignorStatus = "consignor_status"

// Consignor account statuses as reported by the backend.
const (
	ConsignorEnabledStatus              = "EnabledStatus"
	ConsignorAwaitingVerificationStatus = "AwaitingVerificationCompletionStatus"
	ConsignorDisabledStatus             = "DisabledStatus"
)

// ConsignorVerified only passes enabled consignors. Consignors awaiting
// verification, disabled ones and items without the attribute are blocked.
func ConsignorVerified(req ActionRequest) bool {
	status, _ := req.Item.Attributes[AttrConsignorStatus].(string)
	return strings.EqualFold(strings.TrimSpace(status), ConsignorEnabledStatus)
}

// DefaultGuards registers the guards referenced by the default catalog.
func DefaultGuards() *GuardRegistry {
	guards := flow.NewGuardRegistry[statusflow.Status, statusflow.ItemType]()
	if err := guards.Register(GuardConsignorVerified, ConsignorVerified); err != nil {
		panic(err)
	}
	return guards
}
