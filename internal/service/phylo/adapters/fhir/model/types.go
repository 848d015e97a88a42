package model

import (
	"encoding/json"
	"strconv"
)

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// HasCode reports whether any coding carries code, regardless of system.
func (c CodeableConcept) HasCode(code string) bool {
	for _, cd := range c.Coding {
		if cd.Code == code {
			return true
		}
	}
	return false
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

// Extension covers both simple and complex (nested) extensions.
// Decimals stay json.Number so coordinates keep their source precision.
type Extension struct {
	URL          string       `json:"url"`
	ValueDecimal *json.Number `json:"valueDecimal,omitempty"`
	ValueString  *string      `json:"valueString,omitempty"`
	Extension    []Extension  `json:"extension,omitempty"`
}

type Address struct {
	Line      []string    `json:"line,omitempty"`
	City      string      `json:"city,omitempty"`
	Country   string      `json:"country,omitempty"`
	Extension []Extension `json:"extension,omitempty"`
}

type Quantity struct {
	Value *json.Number `json:"value,omitempty"`
	Unit  string       `json:"unit,omitempty"`
}

// Int truncates the quantity value to an integer.
func (q *Quantity) Int() (int, bool) {
	if q == nil || q.Value == nil {
		return 0, false
	}
	if i, err := q.Value.Int64(); err == nil {
		return int(i), true
	}
	f, err := strconv.ParseFloat(q.Value.String(), 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

type Range struct {
	Low  *Quantity `json:"low,omitempty"`
	High *Quantity `json:"high,omitempty"`
}
