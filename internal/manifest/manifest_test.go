package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTripID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"12345.0", "12345"},
		{"  AB-12 / 7 ", "AB-127"},
		{"", ""},
		{"X_Y.Z", "XYZ"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTripID(tt.in), "input %q", tt.in)
	}
}

func TestRecordNormalize_UnknownPortSubstitutes(t *testing.T) {
	s := DefaultSentinels()
	rec := Record{Row: 3, TripID: "99.0", PortCode: " zzzzz ", Place: "ROSARIO", Country: "200"}

	got := rec.Normalize(s)

	assert.Equal(t, "ZZZZZ", got.PortCode)
	assert.Equal(t, "OTROS", got.Place)
	assert.Equal(t, "701", got.Country)
	assert.Equal(t, "99", got.TripID)
	assert.True(t, got.IsUnknownPort(s))
	// The receiver is untouched.
	assert.Equal(t, "ROSARIO", rec.Place)
}

func TestRecordNormalize_KnownPortKeepsValues(t *testing.T) {
	got := Record{PortCode: "arbue", Place: " BUENOS AIRES ", Country: "200"}.Normalize(DefaultSentinels())
	assert.Equal(t, "ARBUE", got.PortCode)
	assert.Equal(t, "BUENOS AIRES", got.Place)
	assert.Equal(t, "200", got.Country)
}

func TestJoin_FillsOnlyEmptyFields(t *testing.T) {
	records := []Record{
		{TripID: "1", PortCode: "arbue"},
		{TripID: "2", PortCode: "BRSSZ", Place: "SANTOS CUSTOM"},
		{TripID: "3", PortCode: "NOPE"},
		{Row: 40, TripID: "4", PortCode: "ARBUE", Country: "999"},
	}
	ports := []Port{
		{Code: " ARBUE ", Place: "BUENOS AIRES", Country: "200"},
		{Code: "ARBUE", Place: "DUPLICATE", Country: "000"},
		{Code: "brssz", Place: "SANTOS", Country: "203"},
	}

	got := Join(records, ports)

	want := []Record{
		{Row: 2, TripID: "1", PortCode: "arbue", Place: "BUENOS AIRES", Country: "200"},
		{Row: 3, TripID: "2", PortCode: "BRSSZ", Place: "SANTOS CUSTOM", Country: "203"},
		{Row: 4, TripID: "3", PortCode: "NOPE"},
		{Row: 40, TripID: "4", PortCode: "ARBUE", Place: "BUENOS AIRES", Country: "999"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Join mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	doc := `
records:
  - trip_id: "555.0"
    parent_title: T-1
    vessel: MSC ANNA
    port_code: arbue
    date: 01/02/2025
ports:
  - code: ARBUE
    place: BUENOS AIRES
    country: "200"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	got, err := LoadBatch(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Row)
	assert.Equal(t, "BUENOS AIRES", got[0].Place)
	assert.Equal(t, "200", got[0].Country)
}

func TestBatch_DuplicatePorts(t *testing.T) {
	b, err := DecodeBatch([]byte(`
records:
  - trip_id: "1"
    port_code: arbue
ports:
  - code: ARBUE
    place: BUENOS AIRES
  - code: arros
    place: ROSARIO
  - code: " arbue"
    place: CAMPANA
  - code: ARROS
    place: ROSARIO
  - code: ARBUE
    place: ZARATE
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"ARBUE", "ARROS"}, b.DuplicatePorts())
	got := b.Joined()
	require.Len(t, got, 1)
	assert.Equal(t, "BUENOS AIRES", got[0].Place, "first entry wins")

	assert.Empty(t, Batch{Ports: []Port{{Code: "ARBUE"}, {Code: ""}, {Code: ""}}}.DuplicatePorts())
}

func TestLoadBatch_Errors(t *testing.T) {
	_, err := LoadBatch(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = ParseBatch([]byte("records: []\n"))
	require.Error(t, err)

	_, err = ParseBatch([]byte("records: [:"))
	require.Error(t, err)
}

func TestOutcome(t *testing.T) {
	rec := Record{Row: 7, TripID: "A1"}
	res := []Resolution{{Field: "country", Mode: "exact"}, {Field: "port_code", Mode: LastResortMode}}

	ok := Submitted(rec, "click", res, 0)
	assert.True(t, ok.OK())
	assert.True(t, ok.LowConfidence())

	failed := Failed(rec, ErrSubmissionUnconfirmed, nil, 0)
	assert.False(t, failed.OK())
	assert.False(t, failed.LowConfidence())
	assert.Equal(t, ErrSubmissionUnconfirmed.Error(), failed.Reason)
	assert.True(t, errors.Is(failed.Err, ErrSubmissionUnconfirmed))

	want := Outcome{Row: 7, TripID: "A1", Status: StatusFailed, Reason: "unknown error"}
	if diff := cmp.Diff(want, Failed(rec, nil, nil, 0), cmpopts.IgnoreFields(Outcome{}, "Err")); diff != "" {
		t.Errorf("Failed(nil) mismatch (-want +got):\n%s", diff)
	}
}
