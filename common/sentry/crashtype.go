package sentry

import (
	"strings"

	"github.com/go-errors/errors"
)

// CrashType is a bitmask of crash sources a Session can watch.
type CrashType uint32

const (
	CrashTypeMachException CrashType = 1 << iota
	CrashTypeSignal
	CrashTypeCPPException
	CrashTypeLanguageException
	CrashTypeMainThreadDeadlock
	CrashTypeUserReported
)

const (
	CrashTypeAll = CrashTypeMachException |
		CrashTypeSignal |
		CrashTypeCPPException |
		CrashTypeLanguageException |
		CrashTypeMainThreadDeadlock |
		CrashTypeUserReported

	CrashTypeExperimental   = CrashTypeMainThreadDeadlock
	CrashTypeDebuggerUnsafe = CrashTypeMachException | CrashTypeLanguageException
	CrashTypeAsyncSafe      = CrashTypeMachException | CrashTypeSignal
	CrashTypeDebuggerSafe   = CrashTypeAll &^ CrashTypeDebuggerUnsafe
	CrashTypeProductionSafe = CrashTypeAll &^ CrashTypeExperimental
)

var crashTypeNames = []struct {
	t    CrashType
	name string
}{
	{CrashTypeMachException, "mach_exception"},
	{CrashTypeSignal, "signal"},
	{CrashTypeCPPException, "cpp_exception"},
	{CrashTypeLanguageException, "language_exception"},
	{CrashTypeMainThreadDeadlock, "deadlock"},
	{CrashTypeUserReported, "user_reported"},
}

var crashTypeAliases = map[string]CrashType{
	"all":             CrashTypeAll,
	"production_safe": CrashTypeProductionSafe,
	"debugger_safe":   CrashTypeDebuggerSafe,
	"async_safe":      CrashTypeAsyncSafe,
	"experimental":    CrashTypeExperimental,
	"fault":           CrashTypeMachException,
	"panic":           CrashTypeLanguageException,
	"foreign":         CrashTypeCPPException,
}

func (t CrashType) Has(other CrashType) bool {
	return t&other != 0
}

func (t CrashType) String() string {
	if t == 0 {
		return "none"
	}

	var names []string
	for _, n := range crashTypeNames {
		if t&n.t != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// ParseCrashTypes folds a list of type names (or composite aliases such as
// "production_safe") into a single mask.
func ParseCrashTypes(names []string) (CrashType, error) {
	var mask CrashType
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}

		if alias, ok := crashTypeAliases[name]; ok {
			mask |= alias
			continue
		}

		found := false
		for _, n := range crashTypeNames {
			if n.name == name {
				mask |= n.t
				found = true
				break
			}
		}
		if !found {
			return 0, errors.Errorf("unknown crash type %q", raw)
		}
	}
	return mask, nil
}

// fatal reports whether a capture of this type ends the process.
func (t CrashType) fatal() bool {
	return t&(CrashTypeMainThreadDeadlock|CrashTypeUserReported) == 0
}
