package statusflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ItemType is the category of a consigned item. It restricts which
// statuses apply to the item.
type ItemType int

const (
	AppraisableAuctionItemType    ItemType = 1
	NonAppraisableAuctionItemType ItemType = 2
	FixedPriceItemType            ItemType = 3
	CompanyDirectPurchaseType     ItemType = 4
)

var itemTypeTable = []enumEntry[ItemType]{
	{AppraisableAuctionItemType, "AppraisableAuctionItemType", "可估價競標物品"},
	{NonAppraisableAuctionItemType, "NonAppraisableAuctionItemType", "不可估價競標物品"},
	{FixedPriceItemType, "FixedPriceItemType", "定價物品"},
	{CompanyDirectPurchaseType, "CompanyDirectPurchaseType", "公司直購物品"},
}

var (
	itemTypeByValue = indexByValue(itemTypeTable)
	itemTypeByKey   = indexByKey(itemTypeTable)
)

// ItemTypes returns every item type in declaration order.
func ItemTypes() []ItemType {
	out := make([]ItemType, 0, len(itemTypeTable))
	for _, e := range itemTypeTable {
		out = append(out, e.value)
	}
	return out
}

// ParseItemType resolves an item type key such as "FixedPriceItemType".
func ParseItemType(key string) (ItemType, error) {
	if e, ok := itemTypeByKey[normalizeKey(key)]; ok {
		return e.value, nil
	}
	return 0, unknownEnumError(ErrUnknownItemType, "key", key)
}

// ItemTypeFromValue resolves a backend numeric item type code.
func ItemTypeFromValue(v int) (ItemType, error) {
	if e, ok := itemTypeByValue[ItemType(v)]; ok {
		return e.value, nil
	}
	return 0, unknownEnumError(ErrUnknownItemType, "value", v)
}

func (t ItemType) Valid() bool {
	_, ok := itemTypeByValue[t]
	return ok
}

func (t ItemType) String() string {
	if e, ok := itemTypeByValue[t]; ok {
		return e.key
	}
	return fmt.Sprintf("ItemType(%d)", int(t))
}

func (t ItemType) Label() string {
	if e, ok := itemTypeByValue[t]; ok {
		return e.label
	}
	return t.String()
}

func (t ItemType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, unknownEnumError(ErrUnknownItemType, "value", int(t))
	}
	return []byte(t.String()), nil
}

func (t *ItemType) UnmarshalText(text []byte) error {
	v, err := ParseItemType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t *ItemType) UnmarshalYAML(node *yaml.Node) error {
	return t.UnmarshalText([]byte(node.Value))
}

func (t ItemType) MarshalYAML() (any, error) {
	text, err := t.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(text), nil
}
