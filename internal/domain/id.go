package domain

import (
	"fmt"
	"strconv"
)

// ID is the 32-bit hierarchical identifier of a target. From high to low bits
// it holds the schema number, the table number, and the column number. A field
// whose bits are all ones is the sentinel meaning "this level is unset".
type ID uint32

// String returns the decimal form of the identifier.
func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseID parses a decimal identifier.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, ErrValidation("invalid identifier %q", s)
	}
	return ID(v), nil
}

const (
	idBits            = 32
	defaultTableBits  = 12
	defaultColumnBits = 12
)

// IDCodec packs and unpacks target identifiers for one bit layout. The zero
// value uses the default 8/12/12 layout.
type IDCodec struct {
	tableBits  int
	columnBits int
}

// DefaultIDCodec uses 8 schema bits, 12 table bits, and 12 column bits.
var DefaultIDCodec = IDCodec{tableBits: defaultTableBits, columnBits: defaultColumnBits}

// NewIDCodec returns a codec with the given table and column field widths.
// The schema field takes the remaining bits and must keep at least one.
func NewIDCodec(tableBits, columnBits int) (IDCodec, error) {
	if tableBits < 1 || columnBits < 1 {
		return IDCodec{}, ErrValidation("table and column fields need at least one bit, got %d and %d", tableBits, columnBits)
	}
	if tableBits+columnBits > idBits-1 {
		return IDCodec{}, ErrValidation("table (%d) and column (%d) bits leave no schema bits", tableBits, columnBits)
	}
	return IDCodec{tableBits: tableBits, columnBits: columnBits}, nil
}

func (c IDCodec) widths() (tableBits, columnBits int) {
	if c.tableBits == 0 && c.columnBits == 0 {
		return defaultTableBits, defaultColumnBits
	}
	return c.tableBits, c.columnBits
}

// SchemaBits returns the width of the schema field.
func (c IDCodec) SchemaBits() int {
	t, col := c.widths()
	return idBits - t - col
}

// TableBits returns the width of the table field.
func (c IDCodec) TableBits() int {
	t, _ := c.widths()
	return t
}

// ColumnBits returns the width of the column field.
func (c IDCodec) ColumnBits() int {
	_, col := c.widths()
	return col
}

func mask(bits int) uint32 { return uint32(1)<<uint(bits) - 1 }

// MaxSchemaNumber is the largest local schema number. The schema field has no
// sentinel, so every value is usable.
func (c IDCodec) MaxSchemaNumber() int { return int(mask(c.SchemaBits())) }

// MaxTableNumber is the largest local table number; the all-ones value is
// reserved as the sentinel.
func (c IDCodec) MaxTableNumber() int { return int(mask(c.TableBits())) - 1 }

// MaxColumnNumber is the largest local column number; the all-ones value is
// reserved as the sentinel.
func (c IDCodec) MaxColumnNumber() int { return int(mask(c.ColumnBits())) - 1 }

func (c IDCodec) pack(schema, table, column uint32) ID {
	t, col := c.widths()
	return ID(schema<<uint(t+col) | table<<uint(col) | column)
}

func (c IDCodec) checkSchema(schema int) error {
	if schema < 0 || schema > c.MaxSchemaNumber() {
		return ErrValidation("schema number %d out of range [0, %d]", schema, c.MaxSchemaNumber())
	}
	return nil
}

func (c IDCodec) checkTable(table int) error {
	if table < 0 || table > c.MaxTableNumber() {
		return ErrValidation("table number %d out of range [0, %d]", table, c.MaxTableNumber())
	}
	return nil
}

func (c IDCodec) checkColumn(column int) error {
	if column < 0 || column > c.MaxColumnNumber() {
		return ErrValidation("column number %d out of range [0, %d]", column, c.MaxColumnNumber())
	}
	return nil
}

// SchemaID encodes a schema identifier; table and column fields are sentinels.
func (c IDCodec) SchemaID(schema int) (ID, error) {
	if err := c.checkSchema(schema); err != nil {
		return 0, err
	}
	return c.pack(uint32(schema), mask(c.TableBits()), mask(c.ColumnBits())), nil
}

// TableID encodes a table identifier; the column field is the sentinel.
func (c IDCodec) TableID(schema, table int) (ID, error) {
	if err := c.checkSchema(schema); err != nil {
		return 0, err
	}
	if err := c.checkTable(table); err != nil {
		return 0, err
	}
	return c.pack(uint32(schema), uint32(table), mask(c.ColumnBits())), nil
}

// ColumnID encodes a column identifier.
func (c IDCodec) ColumnID(schema, table, column int) (ID, error) {
	if err := c.checkSchema(schema); err != nil {
		return 0, err
	}
	if err := c.checkTable(table); err != nil {
		return 0, err
	}
	if err := c.checkColumn(column); err != nil {
		return 0, err
	}
	return c.pack(uint32(schema), uint32(table), uint32(column)), nil
}

// SchemaLocal extracts the schema field of any identifier.
func (c IDCodec) SchemaLocal(id ID) int {
	t, col := c.widths()
	return int(uint32(id) >> uint(t+col) & mask(c.SchemaBits()))
}

// TableLocal extracts the table field of any identifier.
func (c IDCodec) TableLocal(id ID) int {
	t, col := c.widths()
	return int(uint32(id) >> uint(col) & mask(t))
}

// ColumnLocal extracts the column field of any identifier.
func (c IDCodec) ColumnLocal(id ID) int {
	return int(uint32(id) & mask(c.ColumnBits()))
}

// KindOf classifies an identifier by its innermost non-sentinel field. A value
// whose table field is the sentinel but whose column field is not is a column.
func (c IDCodec) KindOf(id ID) TargetKind {
	columnUnset := uint32(c.ColumnLocal(id)) == mask(c.ColumnBits())
	tableUnset := uint32(c.TableLocal(id)) == mask(c.TableBits())
	switch {
	case columnUnset && tableUnset:
		return KindSchema
	case columnUnset:
		return KindTable
	default:
		return KindColumn
	}
}

// SchemaOf returns the identifier of the schema that contains id.
func (c IDCodec) SchemaOf(id ID) ID {
	return c.pack(uint32(c.SchemaLocal(id)), mask(c.TableBits()), mask(c.ColumnBits()))
}

// TableOf returns the identifier of the table that contains id. For schema
// identifiers it returns id unchanged.
func (c IDCodec) TableOf(id ID) ID {
	return c.pack(uint32(c.SchemaLocal(id)), uint32(c.TableLocal(id)), mask(c.ColumnBits()))
}

// Parent returns the identifier of the direct parent. Schemas have none.
func (c IDCodec) Parent(id ID) (ID, bool) {
	switch c.KindOf(id) {
	case KindTable:
		return c.SchemaOf(id), true
	case KindColumn:
		return c.TableOf(id), true
	default:
		return 0, false
	}
}

// ChildRange returns the inclusive bounds of every identifier that descends
// from parent. Columns have no descendants.
func (c IDCodec) ChildRange(parent ID) (lo, hi ID, ok bool) {
	switch c.KindOf(parent) {
	case KindSchema:
		lo = c.pack(uint32(c.SchemaLocal(parent)), 0, 0)
		return lo, parent - 1, true
	case KindTable:
		lo = c.pack(uint32(c.SchemaLocal(parent)), uint32(c.TableLocal(parent)), 0)
		return lo, parent - 1, true
	default:
		return 0, 0, false
	}
}

// Describe renders the decoded fields of id for humans.
func (c IDCodec) Describe(id ID) string {
	switch c.KindOf(id) {
	case KindSchema:
		return fmt.Sprintf("schema %d", c.SchemaLocal(id))
	case KindTable:
		return fmt.Sprintf("schema %d / table %d", c.SchemaLocal(id), c.TableLocal(id))
	default:
		return fmt.Sprintf("schema %d / table %d / column %d", c.SchemaLocal(id), c.TableLocal(id), c.ColumnLocal(id))
	}
}
