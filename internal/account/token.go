package account

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// Issue returns a fresh single-use token and its issuance time. Tokens are
// positive 63-bit values drawn from crypto/rand, so guessing one inside the
// TTL window is infeasible. The caller stores the pair on the account record.
func Issue() (int64, time.Time) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	token := int64(binary.BigEndian.Uint64(buf[:]) &^ (1 << 63))
	if token == 0 {
		token = 1
	}
	return token, time.Now()
}
