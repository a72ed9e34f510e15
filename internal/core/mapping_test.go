package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMappingJSON_KeepsOrder(t *testing.T) {
	m, err := ParseMappingJSON([]byte(`{"zeta":"z","alpha":"a","mid":"m"}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "a", "m"}, m.Targets())
	assert.Equal(t, []Entry{
		{Source: "zeta", Target: "z"},
		{Source: "alpha", Target: "a"},
		{Source: "mid", Target: "m"},
	}, m.Entries())
}

func TestParseMappingJSON_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode string
	}{
		{"not json", `not json`, CodeInvalidMapping},
		{"array", `["a","b"]`, CodeInvalidMapping},
		{"empty object", `{}`, CodeInvalidMapping},
		{"number value", `{"a":1}`, CodeInvalidMapping},
		{"nested value", `{"a":{"b":"c"}}`, CodeInvalidMapping},
		{"trailing data", `{"a":"b"} {"c":"d"}`, CodeInvalidMapping},
		{"truncated", `{"a":"b"`, CodeInvalidMapping},
		{"empty target", `{"a":"  "}`, CodeInvalidMapping},
		{"duplicate source", `{"a":"x","a":"y"}`, CodeDuplicateColumn},
		{"duplicate target", `{"a":"x","b":"x"}`, CodeDuplicateColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMappingJSON([]byte(tt.input))
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
			assert.Equal(t, tt.wantCode, CodeOf(err))
		})
	}
}

func TestNewMapping_TrimsTargetAndRejectsLongNames(t *testing.T) {
	m, err := NewMapping(Entry{Source: "Customer ID", Target: " customer_id "})
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_id"}, m.Targets())

	long := make([]byte, MaxIdentifierLength+1)
	for i := range long {
		long[i] = 'c'
	}
	_, err = NewMapping(Entry{Source: "a", Target: string(long)})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestMappingOf_OddArguments(t *testing.T) {
	_, err := MappingOf("a", "b", "c")
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, CodeInvalidMapping, e.Code)
}

func TestResolve_ArityMatchesPresentKeys(t *testing.T) {
	m, err := MappingOf("id", "id", "name", "full_name", "missing", "gone", "email", "email_address")
	require.NoError(t, err)

	header := []string{"email", "unused", "id", "name"}
	resolved := m.Resolve(header)

	// 3 of the 4 mapping keys occur in the header.
	require.Len(t, resolved, 3)
	assert.Equal(t, []string{"id", "full_name", "email_address"}, resolved.Targets())
	assert.Equal(t, []ResolvedColumn{
		{Source: "id", Position: 2, Target: "id"},
		{Source: "name", Position: 3, Target: "full_name"},
		{Source: "email", Position: 0, Target: "email_address"},
	}, []ResolvedColumn(resolved))

	row := resolved.Project([]string{"a@b.c", "x", "7", "Ann"})
	assert.Equal(t, Row{"7", "Ann", "a@b.c"}, row)
}

func TestResolve_FirstDuplicateHeaderWins(t *testing.T) {
	m, err := MappingOf("id", "id")
	require.NoError(t, err)

	resolved := m.Resolve([]string{"id", "other", "id"})
	require.Len(t, resolved, 1)
	assert.Equal(t, 0, resolved[0].Position)
}

func TestResolve_NoHeadersPresent(t *testing.T) {
	m, err := MappingOf("a", "b")
	require.NoError(t, err)
	assert.Empty(t, m.Resolve([]string{"x", "y"}))
}

func TestProject_ShortRecordPadsWithEmpty(t *testing.T) {
	resolved := Resolved{
		{Source: "a", Position: 0, Target: "a"},
		{Source: "c", Position: 2, Target: "c"},
	}
	assert.Equal(t, Row{"1", ""}, resolved.Project([]string{"1"}))
	assert.Equal(t, Row{"", ""}, resolved.Project(nil))
}
