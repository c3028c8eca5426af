package wallet

import (
	"encoding/json"
	"fmt"

	"github.com/thanhnp/chain-funder/internal/models"
)

// importedKey is the top-level key holding imported entries.
const importedKey = "imported"

// FundingSection is the top-level key of the wallet's own funding key.
const FundingSection = "funding"

// Record is the decoded wallet file. Top-level keys other than "imported"
// are kept verbatim so a save never drops data written by other tools.
type Record struct {
	Imported map[string]models.ImportedEntry

	extra map[string]json.RawMessage
}

// NewRecord returns an empty wallet record
func NewRecord() *Record {
	return &Record{
		Imported: make(map[string]models.ImportedEntry),
		extra:    make(map[string]json.RawMessage),
	}
}

// HasAlias reports whether alias is already imported
func (r *Record) HasAlias(alias string) bool {
	_, ok := r.Imported[alias]
	return ok
}

// Section decodes the top-level key name into v. It returns false when the
// key is absent.
func (r *Record) Section(name string, v any) (bool, error) {
	raw, ok := r.extra[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("failed to decode wallet section %q: %w", name, err)
	}
	return true, nil
}

// MarshalJSON implements json.Marshaler
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.extra)+1)
	for k, v := range r.extra {
		out[k] = v
	}

	imported := r.Imported
	if imported == nil {
		imported = map[string]models.ImportedEntry{}
	}
	out[importedKey] = imported

	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Record) UnmarshalJSON(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return err
	}
	if top == nil {
		top = make(map[string]json.RawMessage)
	}

	r.Imported = make(map[string]models.ImportedEntry)
	if raw, ok := top[importedKey]; ok {
		delete(top, importedKey)
		if string(raw) != "null" {
			if err := json.Unmarshal(raw, &r.Imported); err != nil {
				return fmt.Errorf("failed to decode imported entries: %w", err)
			}
		}
	}
	r.extra = top

	return nil
}
