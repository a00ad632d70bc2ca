package domain

// TargetKind is the hierarchy level of a target.
type TargetKind int

// Hierarchy levels, outermost first.
const (
	KindSchema TargetKind = iota
	KindTable
	KindColumn
)

func (k TargetKind) String() string {
	switch k {
	case KindSchema:
		return "schema"
	case KindTable:
		return "table"
	case KindColumn:
		return "column"
	default:
		return "unknown"
	}
}

// Target is any catalogued entity: a Schema, a Table, or a Column.
type Target interface {
	TargetID() ID
	TargetName() string
	TargetLocation() *Location
	Kind() TargetKind
}

// Schema is the root of a target tree.
type Schema struct {
	ID          ID
	Name        string
	Description string
	Location    *Location
}

func (s *Schema) TargetID() ID              { return s.ID }
func (s *Schema) TargetName() string        { return s.Name }
func (s *Schema) TargetLocation() *Location { return s.Location }
func (s *Schema) Kind() TargetKind          { return KindSchema }

// Clone returns a copy of s that shares no location with it.
func (s *Schema) Clone() *Schema {
	cp := *s
	cp.Location = s.Location.Clone()
	return &cp
}

// Table belongs to exactly one schema.
type Table struct {
	ID          ID
	Name        string
	Description string
	Location    *Location
	SchemaID    ID
}

func (t *Table) TargetID() ID              { return t.ID }
func (t *Table) TargetName() string        { return t.Name }
func (t *Table) TargetLocation() *Location { return t.Location }
func (t *Table) Kind() TargetKind          { return KindTable }

// Clone returns a copy of t that shares no location with it.
func (t *Table) Clone() *Table {
	cp := *t
	cp.Location = t.Location.Clone()
	return &cp
}

// Column belongs to exactly one table.
type Column struct {
	ID          ID
	Name        string
	Description string
	Location    *Location
	TableID     ID
}

func (c *Column) TargetID() ID              { return c.ID }
func (c *Column) TargetName() string        { return c.Name }
func (c *Column) TargetLocation() *Location { return c.Location }
func (c *Column) Kind() TargetKind          { return KindColumn }

// Clone returns a copy of c that shares no location with it.
func (c *Column) Clone() *Column {
	cp := *c
	cp.Location = c.Location.Clone()
	return &cp
}

// Index returns the position of the column within its table, which is the
// column's local number under codec.
func (c *Column) Index(codec IDCodec) int { return codec.ColumnLocal(c.ID) }

// CloneTarget returns a deep copy of a Schema, Table, or Column. Other
// implementations are returned as is.
func CloneTarget(t Target) Target {
	switch v := t.(type) {
	case *Schema:
		return v.Clone()
	case *Table:
		return v.Clone()
	case *Column:
		return v.Clone()
	default:
		return t
	}
}

// TargetIDs extracts the identifiers of targets, preserving order.
func TargetIDs(targets []Target) []ID {
	ids := make([]ID, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.TargetID())
	}
	return ids
}
