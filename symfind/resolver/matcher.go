package resolver

import (
	"fmt"

	"github.com/chains-project/elfleash/symfind/elfparser"
)

type matchState int

const (
	noMatch matchState = iota
	localCandidate
	globalMatch
)

// matcher accumulates the best entry seen for one name. A local candidate is
// replaced by any later match; a global match ends the scan.
type matcher struct {
	state matchState
	entry elfparser.Symbol
}

// observe records a name match and reports whether scanning can stop.
func (m *matcher) observe(sym elfparser.Symbol) bool {
	m.entry = sym
	if sym.Binding() == elfparser.STB_GLOBAL {
		m.state = globalMatch
		return true
	}
	m.state = localCandidate
	return false
}

func (m *matcher) result() Result {
	switch m.state {
	case globalMatch:
		if !m.entry.Defined() {
			return Result{Outcome: SymbolGlobalUndefined}
		}
		return Result{Outcome: SymbolGlobalDefined, Address: m.entry.Value}
	case localCandidate:
		return Result{Outcome: SymbolLocalOnly}
	}
	return Result{Outcome: SymbolNotFound}
}

// matchSymbol scans the symbol table in index order for entries called name.
func matchSymbol(name string, tables elfparser.SymbolTables) (Result, elfparser.Symbol, error) {
	var m matcher
	for i := 0; i < tables.Symbols.Len(); i++ {
		sym, err := tables.Symbols.Symbol(i)
		if err != nil {
			return Result{}, elfparser.Symbol{}, err
		}
		ok, err := tables.Names.Matches(sym.NameOffset, name)
		if err != nil {
			return Result{}, elfparser.Symbol{}, fmt.Errorf("name of symbol %d: %w", i, err)
		}
		if !ok {
			continue
		}
		if m.observe(sym) {
			break
		}
	}
	return m.result(), m.entry, nil
}
