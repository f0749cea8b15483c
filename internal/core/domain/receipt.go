package domain

// ReceiptStatus is the execution outcome recorded in a transaction receipt.
type ReceiptStatus string

const (
	ReceiptStatusSuccess  ReceiptStatus = "success"
	ReceiptStatusReverted ReceiptStatus = "reverted"
)

// Receipt is the subset of an EVM receipt the watcher needs.
type Receipt struct {
	TxHash       string
	BlockNumber  uint64
	BlockHash    string
	GasUsed      uint64
	Status       ReceiptStatus
	RevertReason string
}
