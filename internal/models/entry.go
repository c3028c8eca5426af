package models

import (
	"encoding/json"
	"strings"
)

// ImportedEntry is the address material stored under one wallet alias.
//
// Entries imported from a WIF only carry Address and WIF. Entries imported
// from a raw private key carry every encoding, with Address equal to
// LegacyAddress. The JSON keys match wallets written by earlier tooling,
// which is why the legacy address sits under "taproot". Keys this type
// does not know are kept and written back unchanged.
type ImportedEntry struct {
	Address              string `json:"address"`
	LegacyAddress        string `json:"taproot,omitempty"`
	SegwitAddress        string `json:"segWit,omitempty"`
	SegwitWrappedAddress string `json:"segWit_p2sh,omitempty"`
	WIF                  string `json:"WIF"`

	extra map[string]json.RawMessage
}

var entryKeys = []string{"address", "taproot", "segWit", "segWit_p2sh", "WIF"}

// Extra returns the raw value of a key ImportedEntry does not model.
func (e ImportedEntry) Extra(key string) (json.RawMessage, bool) {
	raw, ok := e.extra[key]
	return raw, ok
}

// MarshalJSON implements json.Marshaler
func (e ImportedEntry) MarshalJSON() ([]byte, error) {
	type plain ImportedEntry
	known, err := json.Marshal(plain(e))
	if err != nil || len(e.extra) == 0 {
		return known, err
	}

	merged := make(map[string]json.RawMessage, len(e.extra)+len(entryKeys))
	for k, v := range e.extra {
		merged[k] = v
	}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// UnmarshalJSON implements json.Unmarshaler
func (e *ImportedEntry) UnmarshalJSON(data []byte) error {
	type plain ImportedEntry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range all {
		if isEntryKey(k) {
			delete(all, k)
		}
	}

	*e = ImportedEntry(p)
	e.extra = nil
	if len(all) > 0 {
		e.extra = all
	}
	return nil
}

// isEntryKey matches the way encoding/json folds case onto struct fields.
func isEntryKey(k string) bool {
	for _, known := range entryKeys {
		if strings.EqualFold(k, known) {
			return true
		}
	}
	return false
}
