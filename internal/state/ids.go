package state

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func newID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0)).String()
}

func randomBase36(r io.Reader, n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	radix := big.NewInt(int64(len(base36)))
	for range n {
		i, err := rand.Int(r, radix)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteByte(base36[i.Int64()])
	}
	return b.String(), nil
}
