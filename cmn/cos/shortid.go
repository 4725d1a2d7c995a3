package cos

import (
	"sync/atomic"

	"github.com/teris-io/shortid"
)

// Alphabet for generating trace/tie ids. len(uuidABC) > 0x3f so GenTie's
// bit-masked indices stay in range.
const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sid  *shortid.Shortid
	rtie int32
)

func init() {
	sid = shortid.MustNew(4 /*worker*/, uuidABC, 0)
}

// InitShortID reseeds the generator; called once at process boot with an
// entropy source.
func InitShortID(seed uint64) {
	sid = shortid.MustNew(4, uuidABC, seed)
}

// GenTraceID produces a short, human-greppable id for dispatch metrics spans
// (ops) - never used for the monotonic rid/promise_id
// counters this design requires to stay strictly ordered.
func GenTraceID() string {
	id, err := sid.Generate()
	if err != nil {
		return GenTie()
	}
	return id
}

// GenTie returns a short, collision-resistant suffix for temp file names.
func GenTie() string {
	tie := atomic.AddInt32(&rtie, 1)
	b0 := uuidABC[tie&0x3f]
	b1 := uuidABC[(-tie)&0x3f]
	b2 := uuidABC[(tie>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}
