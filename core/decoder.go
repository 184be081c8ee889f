package core

import (
	"strconv"
	"strings"
)

// CommaDecoder ports original_source/pyrealtime/decode_layer.py's
// comma_decoder default: split on ",", parse each field as a float, and
// return nil (-> NONE) on any parse failure. It's the reference decoder for
// NewMultiOutput -- a real, runnable example of the user-supplied decoder
// contract spec.md §1 places outside the core.
func CommaDecoder(portNames []string, item Item) map[string]Item {
	s, ok := item.Value.(string)
	if !ok {
		return nil
	}
	fields := strings.Split(s, ",")
	if len(fields) != len(portNames) {
		return nil
	}
	out := make(map[string]Item, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil
		}
		out[portNames[i]] = Data(v)
	}
	return out
}
