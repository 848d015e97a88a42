package fhir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveNext(t *testing.T) {
	base := "https://fhir.example.org/fhir"

	tests := []struct {
		name string
		next string
		want string
	}{
		{"last page", "", ""},
		{"same host", "https://fhir.example.org/fhir/Observation?page=2", "https://fhir.example.org/fhir/Observation?page=2"},
		{"other host", "http://internal:8080/fhir?_getpages=abc&_offset=1000", "https://fhir.example.org/fhir/Observation?_getpages=abc&_offset=1000"},
		{"absolute path", "/fhir/Observation?page=3", "https://fhir.example.org/fhir/Observation?page=3"},
		{"relative path", "Observation?page=4", "https://fhir.example.org/Observation?page=4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveNext(base, tt.next))
		})
	}
}
