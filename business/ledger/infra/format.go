package infra

import "math/big"

func intString(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}
