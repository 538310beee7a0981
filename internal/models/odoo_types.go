package models

import (
	"encoding/json"
	"errors"
)

// OdooString decodes an Odoo char field. Odoo sends false for empty text
// fields.
type OdooString string

func (s *OdooString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = OdooString(str)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil && !b {
		*s = ""
		return nil
	}
	return errors.New("OdooString: expected string or false")
}

func (s OdooString) String() string { return string(s) }

// OdooMany2One decodes a many2one field, which Odoo returns as [id, "name"]
// or false when unset.
type OdooMany2One struct {
	ID   int64
	Name string
}

// UnmarshalJSON handles both the pair and false.
func (m *OdooMany2One) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*m = OdooMany2One{}
		return nil
	}

	var pair []interface{}
	if err := json.Unmarshal(data, &pair); err != nil || len(pair) == 0 {
		return errors.New("OdooMany2One: expected [id, name] or false")
	}
	id, ok := pair[0].(float64)
	if !ok {
		return errors.New("OdooMany2One: id is not a number")
	}
	m.ID = int64(id)
	if len(pair) > 1 {
		m.Name, _ = pair[1].(string)
	}
	return nil
}
