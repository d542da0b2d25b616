package parser

import (
	"encoding/json"
	"testing"

	"github.com/OCAP2/tetrad/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hostRecord mirrors a table returned by the host for one unit.
func hostRecord() Record {
	return Record{
		"Name":        "Su-27",
		"Country":     0.0,
		"Coalition":   "Allies",
		"CoalitionID": 1.0,
		"LatLongAlt": map[string]any{
			"Lat":  43.1234567891,
			"Long": 40.9876543219,
			"Alt":  3200.5,
		},
		"Heading":   4.71238898,
		"Pitch":     0.0523,
		"Bank":      -0.125,
		"Position":  map[string]any{"x": -12000.25, "y": 3200.5, "z": 250000.75},
		"UnitName":  "Flanker 1-1",
		"GroupName": "Flanker 1",
	}
}

func TestParseObject(t *testing.T) {
	obj, err := ParseObject(42, hostRecord())
	require.NoError(t, err)

	assert.Equal(t, core.WorldObject{
		ID:          42,
		Name:        "Su-27",
		Country:     0,
		Coalition:   "Allies",
		CoalitionID: 1,
		LatLonAlt:   core.LatLonAlt{Lat: 43.1234567891, Lon: 40.9876543219, Alt: 3200.5},
		Heading:     4.71238898,
		Pitch:       0.0523,
		Bank:        -0.125,
		Position:    core.Position{X: -12000.25, Y: 3200.5, Z: 250000.75},
	}, obj)
}

func TestParseObject_FromJSON(t *testing.T) {
	raw := `{"Name":"AIM_120C","Country":2,"Coalition":"Enemies","CoalitionID":2,
		"LatLongAlt":{"Lat":42.5,"Long":41.5,"Alt":8000},
		"Heading":0.5,"Pitch":0.1,"Bank":0,"Position":{"x":1,"y":8000,"z":2}}`
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	obj, err := ParseObject(7, rec)
	require.NoError(t, err)
	assert.Equal(t, "AIM_120C", obj.Name)
	assert.Equal(t, 2, obj.CoalitionID)
	assert.Equal(t, 8000.0, obj.LatLonAlt.Alt)
}

func TestParseObject_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r Record)
		wantErr error
	}{
		{"missing name", func(r Record) { delete(r, "Name") }, ErrMissingField},
		{"nil country", func(r Record) { r["Country"] = nil }, ErrMissingField},
		{"coalition not a string", func(r Record) { r["Coalition"] = 3 }, ErrMalformed},
		{"fractional coalition id", func(r Record) { r["CoalitionID"] = 1.5 }, ErrMalformed},
		{"missing LatLongAlt", func(r Record) { delete(r, "LatLongAlt") }, ErrMissingField},
		{"LatLongAlt not a table", func(r Record) { r["LatLongAlt"] = "43,41" }, ErrMalformed},
		{"missing Long", func(r Record) { delete(r["LatLongAlt"].(map[string]any), "Long") }, ErrMissingField},
		{"missing heading", func(r Record) { delete(r, "Heading") }, ErrMissingField},
		{"position z malformed", func(r Record) { r["Position"].(map[string]any)["z"] = "up" }, ErrMalformed},
		{"latitude out of range", func(r Record) { r["LatLongAlt"].(map[string]any)["Lat"] = 123.0 }, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := hostRecord()
			tt.mutate(rec)
			_, err := ParseObject(1, rec)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseUnit(t *testing.T) {
	unit, err := ParseUnit(3, hostRecord())
	require.NoError(t, err)
	assert.Equal(t, "Flanker 1-1", unit.UnitName)
	assert.Equal(t, "Flanker 1", unit.GroupName)
	assert.Equal(t, 3, unit.Object.ID)
}

func TestParseUnit_MissingUnitNameUsesSentinel(t *testing.T) {
	rec := hostRecord()
	delete(rec, "UnitName")
	delete(rec, "GroupName")

	unit, err := ParseUnit(3, rec)
	require.NoError(t, err)
	assert.Equal(t, core.Unnamed, unit.UnitName)
	assert.Equal(t, core.Unnamed, unit.GroupName)
	assert.Equal(t, "Su-27", unit.Object.Name)
}

func TestParseUnit_PresentNamesKept(t *testing.T) {
	rec := hostRecord()
	rec["UnitName"] = ""
	rec["GroupName"] = 7

	unit, err := ParseUnit(3, rec)
	require.NoError(t, err)
	assert.Equal(t, "", unit.UnitName)
	assert.Equal(t, "7", unit.GroupName)
}

func TestParser_UnitsSkipsBrokenEntries(t *testing.T) {
	p, logs := newTestParser()

	broken := hostRecord()
	delete(broken, "Position")

	units := p.Units([]Entry{
		{ID: 30, Record: hostRecord()},
		{ID: 10, Record: hostRecord()},
		{ID: 20, Record: broken},
	})

	require.Len(t, units, 2)
	assert.Equal(t, 10, units[0].Object.ID, "entries are ordered by id")
	assert.Equal(t, 30, units[1].Object.ID)
	assert.Contains(t, logs.String(), "Skipping world unit")
	assert.Contains(t, logs.String(), "id=20")
}

func TestParser_Objects(t *testing.T) {
	p, logs := newTestParser()

	bad := hostRecord()
	bad["Bank"] = "sideways"

	objs := p.Objects([]Entry{
		{ID: 1, Record: hostRecord()},
		{ID: 2, Record: bad},
		{ID: 3, Record: hostRecord()},
	})

	require.Len(t, objs, 2)
	assert.Equal(t, 1, objs[0].ID)
	assert.Equal(t, 3, objs[1].ID)
	assert.Contains(t, logs.String(), "Skipping world object")
}

func TestParser_EmptyInput(t *testing.T) {
	p, _ := newTestParser()
	assert.Empty(t, p.Units(nil))
	assert.NotNil(t, p.Objects(nil))
}
