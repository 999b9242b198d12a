package host

import (
	"github.com/ajitpratap0/nebula-sheets/pkg/config"
	"github.com/ajitpratap0/nebula-sheets/pkg/connector/core"
	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
)

// ColumnDef is a plain core.Column.
type ColumnDef struct {
	ColName string
	ColNum  int
	Type    core.TypeOID
}

// Column returns a column definition.
func Column(name string, num int, typ core.TypeOID) ColumnDef {
	return ColumnDef{ColName: name, ColNum: num, Type: typ}
}

func (c ColumnDef) Name() string          { return c.ColName }
func (c ColumnDef) Num() int              { return c.ColNum }
func (c ColumnDef) TypeOID() core.TypeOID { return c.Type }

// ColumnsFromConfig numbers configured columns from 1 in declaration order.
func ColumnsFromConfig(cfgs []config.ColumnConfig) ([]core.Column, error) {
	cols := make([]core.Column, 0, len(cfgs))
	for i, cc := range cfgs {
		typ, err := core.ParseTypeOID(cc.Type)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidOption, "column "+cc.Name)
		}
		cols = append(cols, Column(cc.Name, i+1, typ))
	}
	return cols, nil
}
