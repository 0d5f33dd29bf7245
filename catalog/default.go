package catalog

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed data
var embeddedFS embed.FS

const defaultCatalogPath = "consignment.yaml"

// Role and action identifiers used by the default catalog.
const (
	RoleConsignor = "consignor"

	ActionChooseCompanyDirectPurchase = "choose_company_direct_purchase"
	ActionApproveConsignment          = "approve_consignment"
	ActionRejectConsignment           = "reject_consignment"
	ActionRequestReturn               = "request_return"
	ActionRequestListing              = "request_listing"
)

// DataFS returns the embedded catalog files rooted at `catalog/data`.
func DataFS() fs.FS {
	sub, err := fs.Sub(embeddedFS, "data")
	if err != nil {
		return embeddedFS
	}
	return sub
}

// DefaultConfig returns the embedded consignment catalog.
func DefaultConfig() (Config, error) {
	return LoadConfigFS(DataFS(), defaultCatalogPath)
}

// Default compiles the embedded consignment catalog.
func Default(opts ...Option) (*Catalog, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	return Compile(cfg, opts...)
}

// MustDefault is Default for process startup: a broken embedded catalog is a
// build defect and panics.
func MustDefault(opts ...Option) *Catalog {
	c, err := Default(opts...)
	if err != nil {
		panic(fmt.Sprintf("statusflow: embedded catalog: %v", err))
	}
	return c
}
