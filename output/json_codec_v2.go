//go:build jsonv2

package output

import (
	"encoding/json/jsontext"
	jsonv2 "encoding/json/v2"
)

func jsonMarshalIndent(value any, prefix, indent string) ([]byte, error) {
	opts := jsonv2.JoinOptions(
		jsontext.WithIndent(indent),
		jsontext.WithIndentPrefix(prefix),
		jsonv2.Deterministic(true),
	)
	return jsonv2.Marshal(value, opts)
}
