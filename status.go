package statusflow

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Status is one lifecycle stage of a consigned item. The numeric value
// matches the code used by the item backend.
type Status int

const (
	SubmitAppraisalStatus                       Status = 1
	AppraisalFailureStatus                      Status = 2
	AppraisedStatus                             Status = 3
	ConsignmentApprovedStatus                   Status = 11
	ConsignmentCanceledStatus                   Status = 12
	ConsignorChoosesCompanyDirectPurchaseStatus Status = 13
	ConsignorShippedItem                        Status = 14
	WarehouseArrivalStatus                      Status = 21
	WarehouseReturnPendingStatus                Status = 22
	WarehouseReturningStatus                    Status = 23
	WarehousePersonnelConfirmedStatus           Status = 24
	AppraiserConfirmedStatus                    Status = 25
	ConsignorConfirmedStatus                    Status = 26
	BiddingStatus                               Status = 27
	SoldStatus                                  Status = 31
	CompanyDirectPurchaseStatus                 Status = 32
	ReturnedStatus                              Status = 33
	CompanyRepurchasedStatus                    Status = 34
	CompanyReclaimedStatus                      Status = 35
)

type enumEntry[T comparable] struct {
	value T
	key   string
	label string
}

var statusTable = []enumEntry[Status]{
	{SubmitAppraisalStatus, "SubmitAppraisalStatus", "已提交估價"},
	{AppraisalFailureStatus, "AppraisalFailureStatus", "估價失敗"},
	{AppraisedStatus, "AppraisedStatus", "已估價"},
	{ConsignmentApprovedStatus, "ConsignmentApprovedStatus", "同意託售"},
	{ConsignmentCanceledStatus, "ConsignmentCanceledStatus", "取消託售"},
	{ConsignorChoosesCompanyDirectPurchaseStatus, "ConsignorChoosesCompanyDirectPurchaseStatus", "選擇公司直購"},
	{ConsignorShippedItem, "ConsignorShippedItem", "已寄出"},
	{WarehouseArrivalStatus, "WarehouseArrivalStatus", "已到貨"},
	{WarehouseReturnPendingStatus, "WarehouseReturnPendingStatus", "準備退回"},
	{WarehouseReturningStatus, "WarehouseReturningStatus", "退貨作業中"},
	{WarehousePersonnelConfirmedStatus, "WarehousePersonnelConfirmedStatus", "倉管已確認"},
	{AppraiserConfirmedStatus, "AppraiserConfirmedStatus", "鑑價師已確認"},
	{ConsignorConfirmedStatus, "ConsignorConfirmedStatus", "準備上架"},
	{BiddingStatus, "BiddingStatus", "競標中"},
	{SoldStatus, "SoldStatus", "已售出"},
	{CompanyDirectPurchaseStatus, "CompanyDirectPurchaseStatus", "公司直購"},
	{ReturnedStatus, "ReturnedStatus", "退回"},
	{CompanyRepurchasedStatus, "CompanyRepurchasedStatus", "被公司買回"},
	{CompanyReclaimedStatus, "CompanyReclaimedStatus", "被公司收回"},
}

var (
	statusByValue = indexByValue(statusTable)
	statusByKey   = indexByKey(statusTable)
)

// Statuses returns every status in declaration order.
func Statuses() []Status {
	out := make([]Status, 0, len(statusTable))
	for _, e := range statusTable {
		out = append(out, e.value)
	}
	return out
}

// ParseStatus resolves a status key such as "AppraisedStatus".
// Matching is case-insensitive.
func ParseStatus(key string) (Status, error) {
	if e, ok := statusByKey[normalizeKey(key)]; ok {
		return e.value, nil
	}
	return 0, unknownEnumError(ErrUnknownStatus, "key", key)
}

// StatusFromValue resolves a backend numeric status code.
func StatusFromValue(v int) (Status, error) {
	if e, ok := statusByValue[Status(v)]; ok {
		return e.value, nil
	}
	return 0, unknownEnumError(ErrUnknownStatus, "value", v)
}

// Valid reports whether s is part of the enumeration.
func (s Status) Valid() bool {
	_, ok := statusByValue[s]
	return ok
}

func (s Status) String() string {
	if e, ok := statusByValue[s]; ok {
		return e.key
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Label is the human readable name shown to consignors.
func (s Status) Label() string {
	if e, ok := statusByValue[s]; ok {
		return e.label
	}
	return s.String()
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, unknownEnumError(ErrUnknownStatus, "value", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s *Status) UnmarshalYAML(node *yaml.Node) error {
	return s.UnmarshalText([]byte(node.Value))
}

func (s Status) MarshalYAML() (any, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(text), nil
}

func indexByValue[T comparable](table []enumEntry[T]) map[T]enumEntry[T] {
	out := make(map[T]enumEntry[T], len(table))
	for _, e := range table {
		out[e.value] = e
	}
	return out
}

func indexByKey[T comparable](table []enumEntry[T]) map[string]enumEntry[T] {
	out := make(map[string]enumEntry[T], len(table))
	for _, e := range table {
		out[normalizeKey(e.key)] = e
	}
	return out
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
