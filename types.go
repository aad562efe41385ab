package tdbcore

// ColumnType tags the logical type of a Table column. Physically, Int/Bool/Enum/Date are backed by an IntColumn,
// String/Binary/Mixed by an AdaptiveStringColumn, and Table by a
// SubtableColumn — polymorphism lives entirely in this tag, never in a
// Go type hierarchy.
type ColumnType int

const (
	TypeInt ColumnType = iota
	TypeBool
	TypeString
	TypeEnum
	TypeDate
	TypeBinary
	TypeMixed
	TypeTable
)

// String returns a human-readable column type name, used by cmd/tdbcat.
func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeBool:
		return "Bool"
	case TypeString:
		return "String"
	case TypeEnum:
		return "Enum"
	case TypeDate:
		return "Date"
	case TypeBinary:
		return "Binary"
	case TypeMixed:
		return "Mixed"
	case TypeTable:
		return "Table"
	default:
		return "Unknown"
	}
}
