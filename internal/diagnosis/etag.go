package diagnosis

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ETag returns a strong entity tag over the JSON encoding of v. Map keys are
// encoded sorted, so equal reports always hash the same.
func ETag(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode for etag: %w", err)
	}
	sum := blake2b.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`, nil
}
