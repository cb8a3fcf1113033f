package arch

// EntryFlagSet holds the page-table entry flag bit patterns for one instruction
// family. These are hardware truths, not policy: each field must reproduce the
// exact bit positions the architecture assigns, and a meaning the architecture
// expresses through the absence of a bit (such as AArch64 mappings being
// writable unless marked read-only) is represented as zero.
type EntryFlagSet struct {
	// Present marks an entry as pointing at a valid page or table
	Present uint64
	// ReadOnly forbids writes through this entry
	ReadOnly uint64
	// ReadWrite permits writes through this entry
	ReadWrite uint64
	// UserAccess permits unprivileged access through this entry
	UserAccess uint64
	// NoExec forbids instruction fetch through this entry
	NoExec uint64
	// Exec permits instruction fetch through this entry
	Exec uint64
	// Global keeps the translation cached across address-space switches
	Global uint64
	// NonGlobal scopes the translation to the current address space
	NonGlobal uint64
	// WriteCombining selects write-combining memory ordering for this entry
	WriteCombining uint64
	// DefaultPage is the composite flag set normally applied to a leaf (page)
	// entry
	DefaultPage uint64
	// DefaultTable is the composite flag set normally applied to an internal
	// (next-level table) entry
	DefaultTable uint64
}

// all returns the union of every flag pattern in the set, used by geometry
// validation to prove no flag intrudes on the entry's address field.
func (f EntryFlagSet) all() uint64 {
	return f.Present | f.ReadOnly | f.ReadWrite | f.UserAccess | f.NoExec |
		f.Exec | f.Global | f.NonGlobal | f.WriteCombining | f.DefaultPage | f.DefaultTable
}
