package cos

import jsoniter "github.com/json-iterator/go"

// JSON is the shared jsoniter configuration used anywhere this module
// marshals structures for persistence or the op slow path; json-iterator
// stands in for encoding/json for its speed on hot paths.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

func MustMarshal(v interface{}) []byte {
	b, err := JSON.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// StringSet is a set of strings (for example visited specifiers or
// package ids); no package in this module uses it outside this file.
type StringSet map[string]struct{}

func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func (s StringSet) Add(item string)      { s[item] = struct{}{} }
func (s StringSet) Contains(item string) bool { _, ok := s[item]; return ok }
func (s StringSet) Keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}
