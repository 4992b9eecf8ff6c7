// Package form models the discovered structure of a contact form. The
// structure is stored inline on a lead as JSON and replayed later by the
// submission executor, so round-trip fidelity matters: serialize → store →
// deserialize must reproduce the identical field list and selectors.
package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const SchemaVersion = 1

// Field roles the discoverer maps inputs onto. Phone and "other" fields are
// never populated by the executor.
const (
	RoleName    = "name"
	RoleEmail   = "email"
	RoleCompany = "company"
	RolePhone   = "phone"
	RoleSubject = "subject"
	RoleMessage = "message"
	RoleOther   = "other"
)

// ErrNoStructure means no form structure was ever stored for the lead.
var ErrNoStructure = errors.New("no form structure stored")

// ErrCorruptStructure means a structure was stored but cannot be decoded.
// Callers treat this differently from absence: the discovery ran and its
// output was lost, so re-discovery rather than manual fallback is the remedy.
var ErrCorruptStructure = errors.New("corrupt form structure")

type Field struct {
	Selector  string `json:"selector"`
	Label     string `json:"label"`
	Role      string `json:"role"`
	InputKind string `json:"inputKind"`
}

type Structure struct {
	SchemaVersion   int     `json:"schemaVersion"`
	ContactURL      string  `json:"contactUrl"`
	SubmitURL       string  `json:"submitUrl"`
	SubmitSelector  string  `json:"submitSelector"`
	Fields          []Field `json:"fields"`
	HasCaptcha      bool    `json:"hasCaptcha"`
	HasDynamicToken bool    `json:"hasDynamicToken"`
}

// MessageField reports whether any field is mapped to the message role, the
// minimum viable field for an outreach form.
func (s Structure) MessageField() bool {
	for _, field := range s.Fields {
		if field.Role == RoleMessage {
			return true
		}
	}
	return false
}

func Marshal(s Structure) (string, error) {
	s.SchemaVersion = SchemaVersion
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func Decode(serialized string) (Structure, error) {
	if strings.TrimSpace(serialized) == "" {
		return Structure{}, ErrNoStructure
	}
	var s Structure
	if err := json.Unmarshal([]byte(serialized), &s); err != nil {
		return Structure{}, fmt.Errorf("%w: %v", ErrCorruptStructure, err)
	}
	if s.SchemaVersion != SchemaVersion {
		return Structure{}, fmt.Errorf("%w: unknown schema version %d", ErrCorruptStructure, s.SchemaVersion)
	}
	return s, nil
}
