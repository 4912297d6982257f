package venice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupParams struct {
	Name string `json:"name" jsonschema:"description=Full name"`
	Dept string `json:"dept,omitempty"`
}

type employee struct {
	Name     string            `json:"name"`
	Age      int               `json:"age"`
	Active   bool              `json:"active"`
	Salary   float64           `json:"salary"`
	Tags     []string          `json:"tags"`
	Meta     map[string]string `json:"meta"`
	Hired    time.Time         `json:"hired"`
	Manager  *lookupParams     `json:"manager,omitempty"`
	Comments any               `json:"comments"`
}

func TestGenerateSchema_BasicTypes(t *testing.T) {
	tests := []struct {
		name     string
		schema   func() string
		expected string
	}{
		{"string", func() string { return GenerateSchema[string]().Type }, "string"},
		{"int", func() string { return GenerateSchema[int]().Type }, "integer"},
		{"bool", func() string { return GenerateSchema[bool]().Type }, "boolean"},
		{"float64", func() string { return GenerateSchema[float64]().Type }, "number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.schema())
		})
	}
}

func TestGenerateSchema_Struct(t *testing.T) {
	schema := GenerateSchema[employee]()

	require.NotNil(t, schema)
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, 9, schema.Properties.Len())

	propertyTests := []struct {
		name         string
		expectedType string
	}{
		{"name", "string"},
		{"age", "integer"},
		{"active", "boolean"},
		{"salary", "number"},
		{"tags", "array"},
		{"meta", "object"},
		{"hired", "string"},
		{"manager", "object"},
	}
	for _, test := range propertyTests {
		prop, exists := schema.Properties.Get(test.name)
		require.True(t, exists, "property %s should exist", test.name)
		assert.Equal(t, test.expectedType, prop.Type, "property %s", test.name)
	}

	tags, _ := schema.Properties.Get("tags")
	require.NotNil(t, tags.Items)
	assert.Equal(t, "string", tags.Items.Type)

	// nested structs are inlined, never referenced
	manager, _ := schema.Properties.Get("manager")
	assert.Empty(t, manager.Ref)
	require.NotNil(t, manager.Properties)
	_, exists := manager.Properties.Get("name")
	assert.True(t, exists)
}

func TestGenerateSchema_Required(t *testing.T) {
	schema := GenerateSchema[lookupParams]()

	assert.Equal(t, []string{"name"}, schema.Required)
	name, _ := schema.Properties.Get("name")
	assert.Equal(t, "Full name", name.Description)
}

func TestGenerateSchema_UnnamedTypes(t *testing.T) {
	empty := GenerateSchema[struct{}]()
	require.NotNil(t, empty)
	assert.Equal(t, "object", empty.Type)
	assert.Equal(t, 0, empty.Properties.Len())

	inline := GenerateSchema[struct {
		City string `json:"city"`
	}]()
	assert.Equal(t, "object", inline.Type)
	assert.Equal(t, []string{"city"}, inline.Required)

	pointer := GenerateSchema[*lookupParams]()
	assert.Equal(t, "object", pointer.Type)
	assert.Equal(t, []string{"name"}, pointer.Required)

	assert.NotPanics(t, func() { GenerateSchema[[]string]() })
	assert.NotPanics(t, func() { GenerateSchema[any]() })
}

func TestSchemaMap(t *testing.T) {
	t.Run("drops meta keys", func(t *testing.T) {
		m, err := SchemaMap(GenerateSchema[lookupParams]())
		require.NoError(t, err)

		assert.NotContains(t, m, "$schema")
		assert.NotContains(t, m, "$id")
		assert.Equal(t, "object", m["type"])
		assert.Equal(t, false, m["additionalProperties"])

		props, ok := m["properties"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, props, "name")
		assert.Contains(t, props, "dept")
	})

	t.Run("nil schema", func(t *testing.T) {
		m, err := SchemaMap(nil)
		require.NoError(t, err)
		assert.Nil(t, m)
	})
}
