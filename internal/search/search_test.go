package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryannaik/printrun-vault/internal/index"
)

func codes(entries []index.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Code
	}
	return out
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  2021 Topps Chrome ", "2021 topps chrome"},
		{"2021\tTOPPS   chrome", "2021 topps chrome"},
		{"Straße", "strasse"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestSuggestScenario(t *testing.T) {
	cat := NewCatalog([]index.Entry{
		{Code: "A1", DisplayName: "2021 Topps Chrome", Keywords: "baseball topps"},
	})

	assert.Equal(t, []string{"A1"}, codes(cat.Suggest("chrome")))
	assert.Empty(t, cat.Suggest("c"))

	got, ok := cat.Resolve("2021 topps chrome")
	require.True(t, ok)
	assert.Equal(t, "A1", got.Code)
}

func TestSuggestBelowMinLength(t *testing.T) {
	entries := []index.Entry{
		{Code: "A", DisplayName: "a"},
		{Code: "B", DisplayName: "ab"},
	}
	cat := NewCatalog(entries)
	empty := NewCatalog(nil)

	for _, q := range []string{"", " ", "a", "  a  ", "\tb"} {
		assert.Empty(t, cat.Suggest(q), "query %q", q)
		assert.Empty(t, empty.Suggest(q), "query %q", q)
	}
}

func TestSuggestCapsAndKeepsIndexOrder(t *testing.T) {
	var entries []index.Entry
	for i := 0; i < 20; i++ {
		entries = append(entries, index.Entry{
			Code:        fmt.Sprintf("C%02d", i),
			DisplayName: fmt.Sprintf("Product %d", i),
		})
	}
	// Odd entries carry the keyword.
	for i := 1; i < 20; i += 2 {
		entries[i].Keywords = "refractor"
	}
	cat := NewCatalog(entries)

	got := cat.Suggest("REFRACTOR")
	require.Len(t, got, MaxSuggestions)
	assert.Equal(t, []string{"C01", "C03", "C05", "C07", "C09", "C11", "C13", "C15"}, codes(got))

	all := cat.Suggest("product")
	require.Len(t, all, MaxSuggestions)
	assert.Equal(t, codes(entries[:MaxSuggestions]), codes(all))
}

func TestSuggestIsNotRanked(t *testing.T) {
	cat := NewCatalog([]index.Entry{
		{Code: "X", DisplayName: "2020 Bowman Chrome Draft"},
		{Code: "Y", DisplayName: "Chrome"},
	})
	// The exact-name entry comes second because index order wins.
	assert.Equal(t, []string{"X", "Y"}, codes(cat.Suggest("chrome")))
}

func TestSuggestN(t *testing.T) {
	cat := NewCatalog([]index.Entry{
		{Code: "1", DisplayName: "Topps One"},
		{Code: "2", DisplayName: "Topps Two"},
		{Code: "3", DisplayName: "Topps Three"},
	})
	assert.Equal(t, []string{"1", "2"}, codes(cat.SuggestN("topps", 2)))
	assert.Len(t, cat.SuggestN("topps", 0), 3)
}

func TestMatchesSearchesFacets(t *testing.T) {
	e := index.Entry{
		Code:         "PN-22",
		DisplayName:  "Prizm",
		Year:         "2022",
		Sport:        "Basketball",
		Manufacturer: "Panini",
		Product:      "Hobby Box",
	}
	for _, q := range []string{"prizm", "basketball", "PANINI", "hobby box", "pn-22", "2022 basketball"} {
		assert.True(t, Matches(e, q), "query %q", q)
	}
	assert.False(t, Matches(e, "football"))
	assert.False(t, Matches(e, "p"))
}

func TestResolveExactDisplayNameVariants(t *testing.T) {
	entries := []index.Entry{
		{Code: "A", DisplayName: "2021 Topps Chrome"},
		{Code: "B", DisplayName: "2021 Topps Chrome Update"},
		{Code: "C", DisplayName: "2021 Topps"},
	}
	cat := NewCatalog(entries)

	for _, e := range entries {
		for _, q := range []string{e.DisplayName, "  " + e.DisplayName + " ", upper(e.DisplayName)} {
			got, ok := cat.Resolve(q)
			require.True(t, ok, "query %q", q)
			assert.Equal(t, e.Code, got.Code, "query %q", q)
		}
	}
}

func upper(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'a' && r <= 'z' {
			out[i] = r - 'a' + 'A'
		}
	}
	return string(out)
}

func TestResolveDuplicateDisplayNames(t *testing.T) {
	cat := NewCatalog([]index.Entry{
		{Code: "X1", DisplayName: "Topps Series 1", Keywords: "retail"},
		{Code: "X2", DisplayName: "Topps Series 1", Keywords: "hobby"},
	})
	for i := 0; i < 5; i++ {
		got, ok := cat.Resolve("topps series 1")
		require.True(t, ok)
		assert.Equal(t, "X1", got.Code)
	}
}

func TestResolveFallsBackToFirstMatch(t *testing.T) {
	cat := NewCatalog([]index.Entry{
		{Code: "A", DisplayName: "2019 Donruss", Keywords: "football"},
		{Code: "B", DisplayName: "2019 Donruss Optic", Keywords: "football"},
	})

	got, ok := cat.Resolve("optic")
	require.True(t, ok)
	assert.Equal(t, "B", got.Code)

	got, ok = cat.Resolve("football")
	require.True(t, ok)
	assert.Equal(t, "A", got.Code)

	_, ok = cat.Resolve("hockey")
	assert.False(t, ok)

	_, ok = cat.Resolve("")
	assert.False(t, ok)

	_, ok = cat.Resolve("d")
	assert.False(t, ok)
}

func TestResolveAgreesWithSuggest(t *testing.T) {
	cat := NewCatalog([]index.Entry{
		{Code: "A", DisplayName: "Upper Deck Series 2", Keywords: "hockey"},
		{Code: "B", DisplayName: "Upper Deck Series One", Keywords: "hockey young guns"},
	})
	for _, q := range []string{"young", "hockey", "series", "deck ser"} {
		sug := cat.Suggest(q)
		require.NotEmpty(t, sug, "query %q", q)
		got, ok := cat.Resolve(q)
		require.True(t, ok)
		assert.Equal(t, sug[0].Code, got.Code, "query %q", q)
	}
}

func TestByCode(t *testing.T) {
	cat := NewCatalog([]index.Entry{{Code: "A"}, {Code: "B", DisplayName: "Bee"}})
	e, ok := cat.ByCode("B")
	require.True(t, ok)
	assert.Equal(t, "Bee", e.DisplayName)
	_, ok = cat.ByCode("Z")
	assert.False(t, ok)
}
