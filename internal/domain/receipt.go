package domain

import "lukechampine.com/uint128"

const (
	DefaultHintPageSize = 10
	MaxHintPageSize     = 256
)

// PagingHint tells the verifier which page of the requester's transfer
// history should contain the receipt.
type PagingHint struct {
	Page     uint32
	PageSize uint32
}

// Normalize fills the default page size and caps it.
func (h PagingHint) Normalize() PagingHint {
	if h.PageSize == 0 {
		h.PageSize = DefaultHintPageSize
	}
	if h.PageSize > MaxHintPageSize {
		h.PageSize = MaxHintPageSize
	}
	return h
}

type ReceiptQuery struct {
	ID         uint64
	Credential string
	Hint       PagingHint
	Requester  string
}

// Receipt is a verified transfer.
type Receipt struct {
	ID       uint64
	Sender   string
	Receiver string
	Amount   uint128.Uint128
}
