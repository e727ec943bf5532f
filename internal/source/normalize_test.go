package source

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heritage-atlas/heritage-cli/internal/model"
)

func TestNormalize_SynthesizesAddress(t *testing.T) {
	spec := model.SourceSpec{
		Path: "data/delhi.csv",
		Columns: map[string]model.Field{
			"Monument": model.FieldSiteName,
			"Town":     model.FieldCity,
			"District": model.FieldDistrict,
			"State":    model.FieldState,
		},
	}
	tbl := &Table{
		Header: []string{"Monument", "Town", "District", "State", "Notes"},
		Rows: [][]string{
			{"Red Fort", "Delhi", "", "Delhi", "UNESCO"},
			{"nan", " Agra ", "nan", "Uttar Pradesh"},
		},
	}

	got := Normalize(spec, tbl)
	want := []model.NormalizedRecord{
		{SiteName: "Red Fort", City: "Delhi", State: "Delhi", Address: "Red Fort, Delhi, Delhi", Category: model.CategoryFort, Source: "delhi.csv"},
		{City: "Agra", State: "Uttar Pradesh", Address: "Agra, Uttar Pradesh", Category: model.CategoryMonument, Source: "delhi.csv"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_FixedStateOverridesColumn(t *testing.T) {
	columns := map[string]model.Field{"Name": model.FieldSiteName, "State": model.FieldState}
	tbl := &Table{
		Header: []string{"Name", "State"},
		Rows:   [][]string{{"Sun Temple", "Orissa"}, {"Lingaraj Temple", ""}},
	}

	for _, state := range []string{"Odisha", "Kalinga"} {
		recs := Normalize(model.SourceSpec{Path: "odisha.csv", Columns: columns, FixedState: state}, tbl)
		require.Len(t, recs, 2)
		for _, r := range recs {
			assert.Equal(t, state, r.State)
		}
	}
}

func TestNormalize_FixedCity(t *testing.T) {
	spec := model.SourceSpec{Path: "x.csv", Columns: map[string]model.Field{"Name": model.FieldSiteName}, FixedCity: "Agra"}
	recs := Normalize(spec, &Table{Header: []string{"Name"}, Rows: [][]string{{"Taj Mahal"}}})
	require.Len(t, recs, 1)
	assert.Equal(t, "Agra", recs[0].City)
	assert.Equal(t, "Taj Mahal, Agra", recs[0].Address)
}

func TestNormalize_ExplicitAddressUsedVerbatim(t *testing.T) {
	spec := model.SourceSpec{
		Path:    "addr.csv",
		Columns: map[string]model.Field{"Site": model.FieldSiteName, "Full Address": model.FieldAddress},
	}
	tbl := &Table{
		Header: []string{"Site", "Full Address"},
		Rows:   [][]string{{"Qutub Minar", "Qutub Minar, Delhi"}, {"Unknown", ""}},
	}

	recs := Normalize(spec, tbl)
	require.Len(t, recs, 2)
	assert.Equal(t, "Qutub Minar, Delhi", recs[0].Address)
	assert.Equal(t, "", recs[1].Address, "explicit empty address is not synthesized")
}

func TestNormalize_MissingFieldsAreNull(t *testing.T) {
	spec := model.SourceSpec{Path: "names.csv", Columns: map[string]model.Field{"Name": model.FieldSiteName}}
	recs := Normalize(spec, &Table{Header: []string{"Name"}, Rows: [][]string{{"Ellora Caves"}, {}}})

	require.Len(t, recs, 2)
	assert.Empty(t, recs[0].City)
	assert.Empty(t, recs[0].District)
	assert.Empty(t, recs[0].State)
	assert.Equal(t, "Ellora Caves", recs[0].Address)

	assert.Equal(t, "", recs[1].Address, "all-empty row still yields a record with empty address")
}

func TestNormalize_CanonicalHeaderWithoutRename(t *testing.T) {
	spec := model.SourceSpec{Path: "c.csv"}
	recs := Normalize(spec, &Table{Header: []string{"site_name", "city"}, Rows: [][]string{{"Charminar", "Hyderabad"}}})
	require.Len(t, recs, 1)
	assert.Equal(t, "Charminar, Hyderabad", recs[0].Address)
}

func TestNormalize_FoldColumns(t *testing.T) {
	spec := model.SourceSpec{Path: "d.csv", Columns: DefaultColumns, FoldColumns: true}
	tbl := &Table{
		Header: []string{"NAME OF MONUMENT", "Locality", "State/UT", "Type"},
		Rows:   [][]string{{"Golconda", "Hyderabad", "Telangana", "Fort"}},
	}
	recs := Normalize(spec, tbl)
	require.Len(t, recs, 1)
	assert.Equal(t, "Golconda", recs[0].SiteName)
	assert.Equal(t, "Hyderabad", recs[0].City)
	assert.Equal(t, "Telangana", recs[0].State)
	assert.Equal(t, "Fort", recs[0].Category)
}

func TestNormalize_ExactMatchWithoutFold(t *testing.T) {
	spec := model.SourceSpec{Path: "e.csv", Columns: map[string]model.Field{"Name": model.FieldSiteName}}
	recs := Normalize(spec, &Table{Header: []string{"NAME"}, Rows: [][]string{{"Charminar"}}})
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].SiteName)
}

func TestNormalize_FirstColumnWins(t *testing.T) {
	spec := model.SourceSpec{Path: "f.csv", Columns: map[string]model.Field{
		"Name": model.FieldSiteName, "Alt": model.FieldSiteName,
	}}
	recs := Normalize(spec, &Table{Header: []string{"Name", "Alt"}, Rows: [][]string{{"Hawa Mahal", "Palace of Winds"}}})
	assert.Equal(t, "Hawa Mahal", recs[0].SiteName)
	assert.Equal(t, model.CategoryPalace, recs[0].Category)
}

func TestNormalize_FixedCategory(t *testing.T) {
	spec := model.SourceSpec{Path: "g.csv", Columns: map[string]model.Field{"Name": model.FieldSiteName}, FixedCategory: "Stepwell"}
	recs := Normalize(spec, &Table{Header: []string{"Name"}, Rows: [][]string{{"Rani ki Vav"}}})
	assert.Equal(t, "Stepwell", recs[0].Category)
}

func TestSynthesizeAddress(t *testing.T) {
	tests := []struct {
		name string
		rec  model.NormalizedRecord
		want string
	}{
		{"all", model.NormalizedRecord{SiteName: "A", City: "B", District: "C", State: "D"}, "A, B, C, D"},
		{"nan skipped", model.NormalizedRecord{SiteName: "A", City: "nan", District: "NaN", State: "D"}, "A, D"},
		{"empty", model.NormalizedRecord{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SynthesizeAddress(tt.rec))
		})
	}
}
