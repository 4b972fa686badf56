package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"xihong/internal/errs"
)

const hashBlockSize = 1 << 20

// contentHash is sha256 over "shop_id:<id>", "platform:<code>" and the file
// bytes, so the same export owned by two shops yields two hashes.
func contentHash(path string, shopID string, platform string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, errs.Wrap(err, "open file for hashing")
	}
	defer f.Close()

	h := sha256.New()
	if shopID != "" {
		_, _ = io.WriteString(h, "shop_id:"+shopID)
	}
	if platform != "" {
		_, _ = io.WriteString(h, "platform:"+platform)
	}

	buf := make([]byte, hashBlockSize)
	size, err := io.CopyBuffer(h, f, buf)
	if err != nil {
		return "", 0, errs.Wrap(err, "hash file")
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
