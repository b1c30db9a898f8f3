package index

import (
	"encoding/json"
	"strconv"
	"time"
)

// Fixed keys the snapshot is persisted under, shared by every Store.
const (
	IndexKey   = "prv_index_v1"
	VersionKey = "prv_index_version"
	UpdatedKey = "prv_index_updated"
)

// Entry is one searchable product. Code is the stable lookup key.
type Entry struct {
	Code         string `json:"Code"`
	DisplayName  string `json:"DisplayName"`
	Keywords     string `json:"Keywords,omitempty"`
	Year         Text   `json:"year,omitempty"`
	Sport        Text   `json:"sport,omitempty"`
	Manufacturer Text   `json:"manufacturer,omitempty"`
	Product      Text   `json:"product,omitempty"`
}

// Snapshot is the persisted index plus the version token it was fetched at.
// A published Snapshot is never mutated.
type Snapshot struct {
	Entries   []Entry   `json:"entries"`
	Version   string    `json:"version,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Len returns the number of entries, tolerating a nil snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// Text is a string facet that the backend sometimes sends as a JSON number
// (years mostly).
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = Text(n.String())
	return nil
}

func (t Text) String() string { return string(t) }

// Dedupe drops entries with an empty code and every repeat of a code after its
// first occurrence. It reports how many entries were dropped.
func Dedupe(entries []Entry) ([]Entry, int) {
	seen := make(map[string]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Code == "" || seen[e.Code] {
			continue
		}
		seen[e.Code] = true
		out = append(out, e)
	}
	return out, len(entries) - len(out)
}

func formatUnix(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseUnix(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
