// Package schema compiles CUE table definitions into catalog metadata.
//
// A schema file declares tables, columns, and indexes:
//
//	tables: {
//		Inventory: {
//			columns: [
//				{name: "item_id", type: "u64"},
//				{name: "item_name", type: "string"},
//			]
//			indexes: [["item_id"]]
//		}
//	}
//
// Columns accept optional `nullable: true` and `quoted: true` fields;
// quoted declarations compare case-sensitively everywhere else in the
// system.
package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/value"
)

// CompileError reports a schema definition problem with its CUE position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileString compiles a schema from CUE source text.
func CompileString(src string) ([]*catalog.Table, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return Compile(v)
}

// LoadDir loads and compiles all CUE files in a directory.
func LoadDir(dir string) ([]*catalog.Table, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("schema path %s is not a directory", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE files in %s", dir)
	}
	if instances[0].Err != nil {
		return nil, fmt.Errorf("load schema: %w", instances[0].Err)
	}

	ctx := cuecontext.New()
	v := ctx.BuildInstance(instances[0])
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	return Compile(v)
}

// Compile walks a CUE value holding a `tables` struct and produces
// validated table metadata.
func Compile(v cue.Value) ([]*catalog.Table, error) {
	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return nil, &CompileError{Field: "tables", Message: "tables is required", Pos: v.Pos()}
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, &CompileError{Field: "tables", Message: err.Error(), Pos: tablesVal.Pos()}
	}

	var tables []*catalog.Table
	seen := make(map[string]bool)
	for iter.Next() {
		name := iter.Selector().Unquoted()
		tbl, err := compileTable(name, iter.Value())
		if err != nil {
			return nil, err
		}
		key := tbl.Key()
		if seen[key] {
			return nil, &CompileError{
				Field:   "tables." + name,
				Message: fmt.Sprintf("duplicate table %q under the active case rule", name),
				Pos:     iter.Value().Pos(),
			}
		}
		seen[key] = true
		tables = append(tables, tbl)
	}
	if len(tables) == 0 {
		return nil, &CompileError{Field: "tables", Message: "at least one table is required", Pos: tablesVal.Pos()}
	}
	return tables, nil
}

func compileTable(name string, v cue.Value) (*catalog.Table, error) {
	field := "tables." + name
	tbl := &catalog.Table{Name: name}

	if q := v.LookupPath(cue.ParsePath("quoted")); q.Exists() {
		quoted, err := q.Bool()
		if err != nil {
			return nil, &CompileError{Field: field + ".quoted", Message: err.Error(), Pos: q.Pos()}
		}
		tbl.Quoted = quoted
	}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &CompileError{Field: field, Message: "columns is required", Pos: v.Pos()}
	}
	colsIter, err := colsVal.List()
	if err != nil {
		return nil, &CompileError{Field: field + ".columns", Message: err.Error(), Pos: colsVal.Pos()}
	}
	for colsIter.Next() {
		col, err := compileColumn(field, colsIter.Value())
		if err != nil {
			return nil, err
		}
		tbl.Columns = append(tbl.Columns, col)
	}

	if ixVal := v.LookupPath(cue.ParsePath("indexes")); ixVal.Exists() {
		ixIter, err := ixVal.List()
		if err != nil {
			return nil, &CompileError{Field: field + ".indexes", Message: err.Error(), Pos: ixVal.Pos()}
		}
		for n := 0; ixIter.Next(); n++ {
			ix, err := compileIndex(field, n, tbl, ixIter.Value())
			if err != nil {
				return nil, err
			}
			tbl.Indexes = append(tbl.Indexes, ix)
		}
	}

	if err := tbl.Validate(); err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return tbl, nil
}

func compileColumn(field string, v cue.Value) (catalog.Column, error) {
	var col catalog.Column

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return col, &CompileError{Field: field + ".columns", Message: "column name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return col, &CompileError{Field: field + ".columns", Message: err.Error(), Pos: nameVal.Pos()}
	}
	col.Name = name

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return col, &CompileError{Field: field + ".columns." + name, Message: "column type is required", Pos: v.Pos()}
	}
	typeName, err := typeVal.String()
	if err != nil {
		return col, &CompileError{Field: field + ".columns." + name, Message: err.Error(), Pos: typeVal.Pos()}
	}
	col.Type, err = value.ParseType(typeName)
	if err != nil {
		return col, &CompileError{Field: field + ".columns." + name, Message: err.Error(), Pos: typeVal.Pos()}
	}

	if nv := v.LookupPath(cue.ParsePath("nullable")); nv.Exists() {
		nullable, err := nv.Bool()
		if err != nil {
			return col, &CompileError{Field: field + ".columns." + name, Message: err.Error(), Pos: nv.Pos()}
		}
		col.Nullable = nullable
	}
	if qv := v.LookupPath(cue.ParsePath("quoted")); qv.Exists() {
		quoted, err := qv.Bool()
		if err != nil {
			return col, &CompileError{Field: field + ".columns." + name, Message: err.Error(), Pos: qv.Pos()}
		}
		col.Quoted = quoted
	}
	return col, nil
}

func compileIndex(field string, n int, tbl *catalog.Table, v cue.Value) (*catalog.Index, error) {
	ixField := fmt.Sprintf("%s.indexes[%d]", field, n)
	colIter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: ixField, Message: err.Error(), Pos: v.Pos()}
	}

	ix := &catalog.Index{Name: fmt.Sprintf("%s_ix%d", tbl.Key(), n)}
	for colIter.Next() {
		colName, err := colIter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: ixField, Message: err.Error(), Pos: colIter.Value().Pos()}
		}
		ordinal, ok := tbl.ColumnIndex(value.FoldIdent(colName), false)
		if !ok {
			// Retry as an exact reference for quoted declarations.
			ordinal, ok = tbl.ColumnIndex(colName, true)
		}
		if !ok {
			return nil, &CompileError{
				Field:   ixField,
				Message: fmt.Sprintf("unknown column %q", colName),
				Pos:     colIter.Value().Pos(),
			}
		}
		ix.Columns = append(ix.Columns, ordinal)
	}
	if len(ix.Columns) == 0 {
		return nil, &CompileError{Field: ixField, Message: "index needs at least one column", Pos: v.Pos()}
	}
	return ix, nil
}
