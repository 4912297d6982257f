// Package directory is the employee lookup table behind the get_user_info
// tool.
package directory

import (
	"context"
	"fmt"
	"os"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"

	"github.com/jpoz/venice"
)

// NotFound is returned by Lookup for unknown names.
const NotFound = "Not found"

// Record is one employee entry. Field order is kept so that the record reads
// the same way it was written when sent back to the model.
type Record = *orderedmap.OrderedMap[string, any]

// Directory maps normalized names to records.
type Directory struct {
	records map[string]Record
}

func New() *Directory {
	return &Directory{records: make(map[string]Record)}
}

// Default returns the built-in directory, which only knows Jean Dupont.
func Default() *Directory {
	d := New()

	jean := orderedmap.New[string, any]()
	jean.Set("age", 45)
	jean.Set("position", "Director Marketing")
	jean.Set("company", "TechCorp")
	jean.Set("city", "Paris")
	d.Add("Jean Dupont", jean)

	return d
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add stores record under name, replacing any previous entry.
func (d *Directory) Add(name string, record Record) {
	d.records[normalize(name)] = record
}

// Len reports the number of records.
func (d *Directory) Len() int {
	return len(d.records)
}

// Lookup returns the record for name, matched case-insensitively, or NotFound.
func (d *Directory) Lookup(name string) any {
	if record, ok := d.records[normalize(name)]; ok {
		return record
	}
	return NotFound
}

// GetUserInfoParams are the arguments of the get_user_info tool.
type GetUserInfoParams struct {
	Name string `json:"name" jsonschema:"description=Full name of the employee"`
}

// Capability exposes Lookup as the get_user_info tool.
func (d *Directory) Capability() (venice.Capability, error) {
	return venice.NewCapability(venice.ToolGetUserInfo, "Access the employee database",
		func(ctx context.Context, p GetUserInfoParams) (any, error) {
			return d.Lookup(p.Name), nil
		})
}

// LoadFile reads a YAML directory:
//
//	Jean Dupont:
//	  age: 45
//	  position: Director Marketing
//
// Field order within each record is preserved.
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("directory: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML directory document.
func Parse(data []byte) (*Directory, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("directory: parse: %w", err)
	}

	d := New()
	if len(doc.Content) == 0 {
		return d, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("directory: line %d: expected a mapping of names to records", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		nameNode, recordNode := root.Content[i], root.Content[i+1]
		if recordNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("directory: line %d: record for %q is not a mapping", recordNode.Line, nameNode.Value)
		}

		record := orderedmap.New[string, any]()
		for j := 0; j+1 < len(recordNode.Content); j += 2 {
			var value any
			if err := recordNode.Content[j+1].Decode(&value); err != nil {
				return nil, fmt.Errorf("directory: line %d: %w", recordNode.Content[j+1].Line, err)
			}
			record.Set(recordNode.Content[j].Value, value)
		}
		d.Add(nameNode.Value, record)
	}

	return d, nil
}
