package correlation

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
)

// Encode returns the deterministic ID of a correlation.
//
// Correlations with the same properties produce the same ID regardless of the
// order in which the properties were supplied. Values are compared by their
// JSON representation.
func Encode(c Correlation) (string, error) {
	h := sha256.New()

	for _, p := range c.properties {
		v, err := json.Marshal(p.Value)
		if err != nil {
			return "", fmt.Errorf(
				"unable to encode correlation property '%s': %w",
				p.Key,
				err,
			)
		}

		writeField(h, []byte(p.Key))
		writeField(h, v)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeField writes a length-prefixed field to w.
func writeField(w io.Writer, data []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))

	w.Write(n[:]) // nolint:errcheck
	w.Write(data) // nolint:errcheck
}
