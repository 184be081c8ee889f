package cos

import (
	"strconv"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

// seed32 is a fixed multiplicative-LCG seed for the package's xxhash.*S
// calls, named after and playing the same role as the teacher's own MLCG32.
const seed32 = 0x9e3779b1

var sid *shortid.Shortid

func init() {
	sid = shortid.MustNew(4 /*worker*/, uuidABC, 1)
}

// GenLayerID generates a short, human-loggable ID for a layer instance.
// Layer names need not be unique (spec.md §3) so diagnostics key off this
// instead.
func GenLayerID() string { return sid.MustGenerate() }

// HashKey folds an arbitrary string (e.g. a port or key name) to a stable
// uint64.
func HashKey(s string) uint64 { return xxhash.ChecksumString64S(s, seed32) }

// GenRunID returns a short base-36 run identifier derived from seed, used to
// label a single StartAll run in the layer manager's log lines.
func GenRunID(seed int64) string { return strconv.FormatUint(xxhash.Checksum64S(i64b(seed), seed32), 36) }

func i64b(v int64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}
