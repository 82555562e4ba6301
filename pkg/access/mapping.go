package access

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Mapping is one row of an identity mapping file.
type Mapping struct {
	Name      string
	UserSID   string
	GroupSIDs []string
}

// MappingTable resolves SIDs against a local identity mapping file, used
// for shares whose server cannot be queried for its directory.
type MappingTable struct {
	Mappings []Mapping
}

// LoadMappings reads a mapping file from disk.
func LoadMappings(path string) (*MappingTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening identity mappings: %w", err)
	}
	defer f.Close()

	table, err := ReadMappings(f)
	if err != nil {
		return nil, fmt.Errorf("reading identity mappings %s: %w", path, err)
	}
	return table, nil
}

// ReadMappings parses "name;user_sid;group_sid,group_sid" rows. Blank rows
// are skipped, as is a leading header row whose first column is "name". The
// group column may be missing or empty.
func ReadMappings(r io.Reader) (*MappingTable, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	table := &MappingTable{}
	for first := true; ; first = false {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(row) {
			continue
		}
		if first && strings.EqualFold(strings.TrimSpace(row[0]), "name") {
			continue
		}
		if len(row) < 2 || strings.TrimSpace(row[1]) == "" {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected name;user_sid;group_sids", line)
		}

		m := Mapping{
			Name:    strings.TrimSpace(row[0]),
			UserSID: strings.TrimSpace(row[1]),
		}
		if len(row) > 2 {
			for _, g := range strings.Split(row[2], ",") {
				if g = strings.TrimSpace(g); g != "" {
					m.GroupSIDs = append(m.GroupSIDs, g)
				}
			}
		}
		table.Mappings = append(table.Mappings, m)
	}
	return table, nil
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Expand returns the names of every mapping whose user SID is sid or whose
// group list contains sid.
func (t *MappingTable) Expand(sid string) []string {
	if t == nil {
		return nil
	}
	var out []string
	for _, m := range t.Mappings {
		if strings.EqualFold(m.UserSID, sid) || containsFold(m.GroupSIDs, sid) {
			out = append(out, m.Name)
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
