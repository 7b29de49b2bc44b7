package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// LicenseContext is a license plus its transactions.
type LicenseContext struct {
	License      LicenseID
	Transactions []TransactionID
}

// RelatedLicenseSet is a group of contexts the matcher believes form one track.
type RelatedLicenseSet struct {
	Contexts []LicenseContext
}

// Records returns every record of the set, licenses followed by their transactions.
func (s RelatedLicenseSet) Records() []RecordRef {
	var refs []RecordRef
	for _, c := range s.Contexts {
		refs = append(refs, LicenseRef(c.License))
		for _, t := range c.Transactions {
			refs = append(refs, TransactionRef(t))
		}
	}
	return refs
}

// LicenseIDs returns the license ids of the set in context order.
func (s RelatedLicenseSet) LicenseIDs() []LicenseID {
	ids := make([]LicenseID, len(s.Contexts))
	for i, c := range s.Contexts {
		ids[i] = c.License
	}
	return ids
}

// TestID encodes the set as base64 JSON of [[licenseId, [txIds...]], ...].
// It is stable for a given set and is used as the group identifier.
func (s RelatedLicenseSet) TestID(a *Arena) string {
	ids := make([][2]any, len(s.Contexts))
	for i, c := range s.Contexts {
		txs := make([]string, len(c.Transactions))
		for j, t := range c.Transactions {
			txs[j] = a.Transaction(t).SourceID
		}
		ids[i] = [2]any{a.License(c.License).SourceID, txs}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		// only strings and string slices are marshalled
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeTestID reverses TestID into license source IDs and their transaction source IDs.
func DecodeTestID(id string) ([]TestIDEntry, error) {
	raw, err := base64.StdEncoding.DecodeString(id)
	if err != nil {
		return nil, fmt.Errorf("%w: test id is not base64: %v", ErrInvalidInput, err)
	}
	var pairs [][]json.RawMessage
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("%w: test id is not a JSON pair list: %v", ErrInvalidInput, err)
	}
	entries := make([]TestIDEntry, 0, len(pairs))
	for _, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: test id entry must have 2 elements", ErrInvalidInput)
		}
		var e TestIDEntry
		if err := json.Unmarshal(p[0], &e.License); err != nil {
			return nil, fmt.Errorf("%w: license id: %v", ErrInvalidInput, err)
		}
		if err := json.Unmarshal(p[1], &e.Transactions); err != nil {
			return nil, fmt.Errorf("%w: transaction ids: %v", ErrInvalidInput, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// TestIDEntry is one decoded context of a test id.
type TestIDEntry struct {
	License      string
	Transactions []string
}

// Validate checks the shape the engine relies on. Any failure is an *InputError.
func (s RelatedLicenseSet) Validate(a *Arena) error {
	if len(s.Contexts) == 0 {
		return &InputError{Reason: "related license set is empty"}
	}
	for _, c := range s.Contexts {
		if int(c.License) < 0 || int(c.License) >= len(a.Licenses) {
			return &InputError{Reason: fmt.Sprintf("license index %d out of range", c.License)}
		}
		for _, tid := range c.Transactions {
			if int(tid) < 0 || int(tid) >= len(a.Transactions) {
				return &InputError{Reason: fmt.Sprintf("transaction index %d out of range", tid)}
			}
		}
	}
	group := s.TestID(a)
	for _, c := range s.Contexts {
		l := a.License(c.License)
		if l.MaintenanceStart.IsZero() {
			return &InputError{Group: group, Record: l.SourceID, Reason: "missing maintenance start date"}
		}
		for _, tid := range c.Transactions {
			t := a.Transaction(tid)
			if t.License != c.License {
				return &InputError{Group: group, Record: t.SourceID, Reason: "transaction belongs to a different license context"}
			}
			if t.SaleDate.IsZero() {
				return &InputError{Group: group, Record: t.SourceID, Reason: "missing sale date"}
			}
			if t.SaleType == 0 {
				return &InputError{Group: group, Record: t.SourceID, Reason: "missing sale type"}
			}
		}
	}
	return nil
}
