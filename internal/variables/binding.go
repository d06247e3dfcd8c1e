package variables

import (
	"fmt"

	"github.com/leapstack-labs/sqlmerger/internal/config"
)

// Binding writes a resolved variable into a store table.
type Binding struct {
	Name     string
	Value    string
	Table    string
	SetCol   string
	WhereCol string
}

// Statement returns the parameterized UPDATE and its arguments.
func (b Binding) Statement() (string, []any) {
	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", b.Table, b.SetCol, b.WhereCol)
	return query, []any{b.Value, b.Name}
}

// Bindings returns the store bindings of the bound variables in declared
// order.
func Bindings(vars []config.Variable, vals Values) []Binding {
	var out []Binding
	for _, v := range vars {
		if !v.Bound() {
			continue
		}
		value, _ := vals.Get(v.Name)
		out = append(out, Binding{
			Name:     v.Name,
			Value:    value,
			Table:    v.SQLTable,
			SetCol:   v.SQLSetCol,
			WhereCol: v.SQLWhereCol,
		})
	}
	return out
}
