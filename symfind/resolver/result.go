package resolver

import "fmt"

// Outcome classifies the answer to one symbol query.
type Outcome int

const (
	// SymbolNotFound: no symbol table entry carries the name.
	SymbolNotFound Outcome = iota
	// SymbolLocalOnly: the name only appears with non-global binding.
	SymbolLocalOnly
	// SymbolGlobalUndefined: a global entry exists but has no defining
	// section, so the symbol comes from a shared library at load time.
	SymbolGlobalUndefined
	// SymbolGlobalDefined: a global entry is defined in the file. Address is set.
	SymbolGlobalDefined
	// FileNotAnExecutable: the file is not an ELF executable.
	FileNotAnExecutable
)

func (o Outcome) String() string {
	switch o {
	case SymbolNotFound:
		return "not_found"
	case SymbolLocalOnly:
		return "local_only"
	case SymbolGlobalUndefined:
		return "global_undefined"
	case SymbolGlobalDefined:
		return "global_defined"
	case FileNotAnExecutable:
		return "not_executable"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	for o := SymbolNotFound; o <= FileNotAnExecutable; o++ {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

type Result struct {
	Outcome Outcome
	// Address is the load address of the symbol. Only meaningful for
	// SymbolGlobalDefined.
	Address uint64
}

// Message renders the result as the one-line console answer for symbol in path.
func (r Result) Message(symbol, path string) string {
	switch r.Outcome {
	case SymbolGlobalDefined:
		return fmt.Sprintf("%s will be loaded to 0x%x", symbol, r.Address)
	case SymbolLocalOnly:
		return fmt.Sprintf("%s is not a global symbol! :(", symbol)
	case SymbolNotFound:
		return fmt.Sprintf("%s not found!", symbol)
	case FileNotAnExecutable:
		return fmt.Sprintf("%s not an executable! :(", path)
	case SymbolGlobalUndefined:
		return fmt.Sprintf("%s is a global symbol, but will come from a shared library", symbol)
	}
	return fmt.Sprintf("%s: %s", symbol, r.Outcome)
}
