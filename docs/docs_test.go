package docs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func commandsTable(rows ...Row) *Table {
	return &Table{Name: TableCommands, Rows: rows}
}

func TestCommandsHashIgnoresSystemCells(t *testing.T) {
	base := commandsTable(Row{"cmd-1", "DW STATUS", "", "", "", ""})

	// System-owned cells do not change the hash.
	withResult := commandsTable(Row{"cmd-1", "DW STATUS", "", "http://x/cmd", "ok", "oops"})
	assert.Equal(t, CommandsHash(base), CommandsHash(withResult))

	// The raw command does.
	edited := commandsTable(Row{"cmd-1", "DW PRICE", "", "", "", ""})
	assert.NotEqual(t, CommandsHash(base), CommandsHash(edited))

	// The status cell does: it is the cell-edit approval surface.
	approved := commandsTable(Row{"cmd-1", "DW STATUS", "APPROVED", "", "", ""})
	assert.NotEqual(t, CommandsHash(base), CommandsHash(approved))
}

func TestCommandsHashRowBoundaries(t *testing.T) {
	// Two rows must not hash like one concatenated row.
	twoRows := commandsTable(
		Row{"", "DW STATUS", "", "", "", ""},
		Row{"", "DW PRICE", "", "", "", ""},
	)
	oneRow := commandsTable(Row{"", "DW STATUSDW PRICE", "", "", "", ""})
	assert.NotEqual(t, CommandsHash(twoRows), CommandsHash(oneRow))
}

func TestCommandsHashNilTable(t *testing.T) {
	assert.NotPanics(t, func() { CommandsHash(nil) })
}

func TestRowCell(t *testing.T) {
	row := Row{"a", "b"}
	assert.Equal(t, "a", row.Cell(0))
	assert.Equal(t, "", row.Cell(5), "short rows read as empty")
	assert.Equal(t, "", row.Cell(-1))
}
