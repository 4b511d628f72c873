package crypto

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Canonicalize produces a deterministic byte encoding of a value tree
// (maps, slices, strings, numbers, bools, nil, time.Time) suitable for
// hashing. The contract (spec.md §4.4, §9) is:
//   - object keys are sorted
//   - numbers are rendered without trailing zeros
//   - timestamps are rendered as ISO-8601 UTC
// This is a hand-rolled encoder rather than encoding/json because Go's
// map key ordering and float formatting are not contractually stable
// across versions, and the integrity hash must reproduce byte-for-byte
// across client implementations and server-side verification (spec.md §9).
func Canonicalize(v interface{}) []byte {
	var buf bytes.Buffer
	writeCanonical(&buf, v)
	return buf.Bytes()
}

func writeCanonical(buf *bytes.Buffer, v interface{}) {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		buf.WriteString(strconv.Quote(val))
	case time.Time:
		buf.WriteString(strconv.Quote(val.UTC().Format("2006-01-02T15:04:05.000Z")))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		writeCanonicalNumber(buf, val)
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, item)
		}
		buf.WriteByte(']')
	case []string:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, item)
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		writeCanonicalMap(buf, val)
	default:
		// Fallback for any other concrete type: render via fmt, quoted.
		buf.WriteString(strconv.Quote(fmt.Sprintf("%v", val)))
	}
}

func writeCanonicalMap(buf *bytes.Buffer, m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		writeCanonical(buf, m[k])
	}
	buf.WriteByte('}')
}

// writeCanonicalNumber renders a float64 without trailing zeros: integral
// values are rendered as integers, others with the minimal decimal
// representation that round-trips.
func writeCanonicalNumber(buf *bytes.Buffer, f float64) {
	if f == float64(int64(f)) {
		buf.WriteString(strconv.FormatInt(int64(f), 10))
		return
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}
