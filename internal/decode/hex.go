package decode

import "encoding/hex"

func hexDecodeString(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
