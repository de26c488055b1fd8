// Package queryfile reads entity and query declarations from YAML and renders them
// with a dialect.
//
//	entities:
//	  - name: User
//	    table: users
//	    columns:
//	      - {name: id, key: true}
//	      - {name: name}
//	      - name: created_at
//	        readonly: true
//	        insert: CURRENT_TIMESTAMP
//	        overrides:
//	          oracle: {insert: SYSTIMESTAMP}
//	queries:
//	  - name: recent
//	    entity: User
//	    where: {"created_at >": "2024-01-01", "_or": [{name: ann}, {name: bob}]}
//	    order_by: [-created_at]
//	    limit: 10
//
// Where and having blocks use the cond.FromMap syntax. A value written as
// {raw: TEXT} is emitted verbatim.
package queryfile

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is one parsed query file.
type File struct {
	// Dialect is used when the caller does not choose one.
	Dialect  string   `yaml:"dialect"`
	Entities []Entity `yaml:"entities"`
	Queries  []Query  `yaml:"queries"`
}

// Entity declares an entity shape.
type Entity struct {
	Name    string   `yaml:"name"`
	Table   string   `yaml:"table"`
	Columns []Column `yaml:"columns"`
}

// Column declares one mapped column. Select, Insert and Update are SQL text used in
// place of the column or value.
type Column struct {
	Name     string `yaml:"name"`
	Property string `yaml:"property"`
	Key      bool   `yaml:"key"`
	ReadOnly bool   `yaml:"readonly"`
	NoInsert bool   `yaml:"no_insert"`
	NoUpdate bool   `yaml:"no_update"`
	NoSelect bool   `yaml:"no_select"`

	Select string `yaml:"select"`
	Insert string `yaml:"insert"`
	Update string `yaml:"update"`

	Overrides map[string]Override `yaml:"overrides"`
}

// Override replaces column expressions for one dialect.
type Override struct {
	Select string `yaml:"select"`
	Insert string `yaml:"insert"`
	Update string `yaml:"update"`
}

// Query declares one statement.
type Query struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`
	Entity string `yaml:"entity"`
	Alias  string `yaml:"alias"`

	Distinct bool     `yaml:"distinct"`
	Columns  []string `yaml:"columns"`
	Joins    []Join   `yaml:"joins"`

	Where   map[string]any `yaml:"where"`
	GroupBy []string       `yaml:"group_by"`
	Having  map[string]any `yaml:"having"`
	// OrderBy lists columns, descending when prefixed with "-".
	OrderBy []string `yaml:"order_by"`
	Limit   *int     `yaml:"limit"`
	Offset  *int     `yaml:"offset"`

	Lock       string `yaml:"lock"`
	NoWait     bool   `yaml:"nowait"`
	SkipLocked bool   `yaml:"skip_locked"`

	// Values is the row written by insert, update and upsert.
	Values   map[string]any `yaml:"values"`
	Conflict []string       `yaml:"conflict"`
}

// Join declares a joined entity. On is SQL text.
type Join struct {
	Kind   string `yaml:"kind"`
	Entity string `yaml:"entity"`
	Alias  string `yaml:"alias"`
	On     string `yaml:"on"`
}

// Parse decodes a query file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode query file")
	}

	return &f, nil
}

// Load reads and parses the query file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read query file %s", path)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	return f, nil
}
