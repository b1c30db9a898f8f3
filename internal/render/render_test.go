package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryannaik/printrun-vault/internal/backend"
)

func sampleRows() *backend.Rows {
	return &backend.Rows{
		Meta: backend.ProductMeta{
			DisplayName:  "2021 Topps Chrome",
			Year:         "2021",
			Sport:        "Baseball",
			Manufacturer: "Topps",
			CMURL:        "https://example.com/p/A1",
		},
		Rows: []backend.Row{
			{SetType: "Base", SetLine: "Refractor", PrintRun: 1250, Serial: "/1250"},
			{SetType: "Insert", SetLine: "Gold", PrintRun: 50, Serial: "/50"},
		},
	}
}

func TestPrintRun(t *testing.T) {
	assert.Equal(t, "0", PrintRun(0))
	assert.Equal(t, "999", PrintRun(999))
	assert.Equal(t, "1,250", PrintRun(1250))
	assert.Equal(t, "1,000,000", PrintRun(1000000))
}

func TestFacets(t *testing.T) {
	assert.Equal(t, "2021 • Baseball • Topps", Facets("2021", "Baseball", "Topps"))
	assert.Equal(t, "2021 • Topps", Facets("2021", " ", "Topps"))
	assert.Equal(t, "", Facets())
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(&buf, sampleRows()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "2021 Topps Chrome", lines[0])
	assert.Equal(t, "2021 • Baseball • Topps", lines[1])
	assert.Equal(t, "https://example.com/p/A1", lines[2])
	assert.Equal(t, "", lines[3])
	assert.Equal(t, "Set Type  Set Line   Print Run  Serial", lines[4])
	assert.Equal(t, "Base      Refractor      1,250  /1250", lines[6])
	assert.Equal(t, "Insert    Gold              50  /50", lines[7])
	assert.NotContains(t, buf.String(), "Subset Size")
}

func TestTableSubsetColumn(t *testing.T) {
	res := sampleRows()
	res.Rows[1].SubSetSize = "25"

	var buf bytes.Buffer
	require.NoError(t, Table(&buf, res))
	assert.Contains(t, buf.String(), "Subset Size")
	assert.Contains(t, buf.String(), "/50     25")
}

func TestTableEmpty(t *testing.T) {
	for _, res := range []*backend.Rows{nil, {Meta: backend.ProductMeta{DisplayName: "X"}}} {
		var buf bytes.Buffer
		require.NoError(t, Table(&buf, res))
		assert.Equal(t, EmptyRows+"\n", buf.String())
	}
}

func TestHTML(t *testing.T) {
	res := sampleRows()
	res.Rows[0].SetLine = "<b>Refractor</b>"

	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, res))
	out := buf.String()

	assert.Contains(t, out, `<div class="resultTitle">2021 Topps Chrome</div>`)
	assert.Contains(t, out, `<div class="resultMeta">2021 • Baseball • Topps</div>`)
	assert.Contains(t, out, `href="https://example.com/p/A1"`)
	assert.Contains(t, out, "<th>Print Run</th>")
	assert.Contains(t, out, "<td>1,250</td>")
	assert.Contains(t, out, "&lt;b&gt;Refractor&lt;/b&gt;")
	assert.NotContains(t, out, "<b>Refractor</b>")
}

func TestHTMLEmptyAndMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, &backend.Rows{}))
	assert.Contains(t, buf.String(), EmptyRows)
	assert.NotContains(t, buf.String(), "<table>")

	buf.Reset()
	require.NoError(t, Message(&buf, "Loading <data>"))
	assert.Equal(t, "<div class=\"empty\">Loading &lt;data&gt;</div>\n", buf.String())
}
