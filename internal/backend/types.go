package backend

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/aryannaik/printrun-vault/internal/index"
)

// Actions understood by the script endpoint.
const (
	ActionIndex     = "index"
	ActionMeta      = "meta"
	ActionRows      = "getRowsByCode"
	ActionLogSearch = "logSearch"
)

// Rows is the print-run data for one product.
type Rows struct {
	Meta ProductMeta `json:"meta"`
	Rows []Row       `json:"rows"`
}

type ProductMeta struct {
	DisplayName  string     `json:"displayName"`
	Year         index.Text `json:"year,omitempty"`
	Sport        index.Text `json:"sport,omitempty"`
	Manufacturer index.Text `json:"manufacturer,omitempty"`
	Product      index.Text `json:"product,omitempty"`
	CMURL        string     `json:"cmURL,omitempty"`
}

type Row struct {
	SetType    index.Text `json:"setType"`
	SetLine    index.Text `json:"setLine"`
	PrintRun   Count      `json:"printRun"`
	Serial     index.Text `json:"serial"`
	SubSetSize index.Text `json:"subSetSize,omitempty"`
}

// SearchEvent is the telemetry payload sent after a product is looked up.
type SearchEvent struct {
	SelectedName string `json:"selectedName"`
	Year         string `json:"year"`
	Sport        string `json:"sport"`
}

// Count is a print run. The backend sends it as a number, a numeric string
// (sometimes with thousands separators) or not at all; anything unparseable
// counts as zero.
type Count int64

func (c *Count) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*c = 0
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(str), ",", "")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*c = Count(n)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*c = Count(f)
		return nil
	}
	*c = 0
	return nil
}

// request is the body posted for every action.
type request struct {
	Action  string `json:"action"`
	Payload any    `json:"payload"`
}

// envelope is the part shared by every response. OK is a pointer so a response
// without the field is judged by Error alone.
type envelope struct {
	OK    *bool  `json:"ok"`
	Error string `json:"error"`
}

func (e envelope) failed() bool {
	if e.OK != nil {
		return !*e.OK
	}
	return e.Error != ""
}

type indexResponse struct {
	Index []index.Entry `json:"index"`
}

type metaResponse struct {
	IndexVersion index.Text `json:"indexVersion"`
}

type rowsPayload struct {
	Code string `json:"code"`
}
