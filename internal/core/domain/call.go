package domain

import "math/big"

// Call is an encoded contract call ready for the wallet session.
type Call struct {
	To     string   // checksummed target contract address
	Data   []byte   // selector + ABI-encoded arguments
	Value  *big.Int // native value, nil for none
	Method string   // contract method name, for logs
}
