package discovery

import (
	"sort"
	"strings"
)

// TXT record keys published by cameras.
const (
	TXTKeyModel    = "model"
	TXTKeyFirmware = "fw"
	TXTKeyPairing  = "pair"
)

// ParseTXT parses raw TXT record strings into a map. Records without a key
// are ignored; a record without '=' is a boolean attribute with an empty value.
func ParseTXT(records []string) map[string]string {
	result := make(map[string]string)
	for _, record := range records {
		idx := strings.IndexByte(record, '=')
		switch {
		case idx > 0:
			result[record[:idx]] = record[idx+1:]
		case idx < 0 && record != "":
			result[record] = ""
		}
	}
	return result
}

// EncodeTXT renders a map as TXT record strings, keys sorted.
func EncodeTXT(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}
