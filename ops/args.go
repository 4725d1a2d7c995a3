package ops

import "github.com/coreruntime/kernel/cmn/cos"

// DecodeArgs and EncodeResult are convenience wrappers around the shared
// jsoniter configuration (cmn/cos.JSON) that a Decl's Slow function uses to
// turn the type-erased rawArgs into concrete Go values and back - standing
// in for "argument decoding from scope-local values -> Rust values ->
// result encoding".
func DecodeArgs(raw []byte, v interface{}) error {
	return cos.JSON.Unmarshal(raw, v)
}

func EncodeResult(v interface{}) ([]byte, error) {
	return cos.JSON.Marshal(v)
}
