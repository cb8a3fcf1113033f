package arch

import (
	"fmt"

	cerrors "github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/mantleos/kmem"
)

// Profile is the set of primary constants one instruction family supplies to
// describe its page-table layout. Every other geometry constant is derived
// arithmetically from these by NewGeometry.
type Profile struct {
	// Name identifies the instruction family in logs and stats dumps
	Name string
	// PageShift is the log2 of the page size in bytes
	PageShift uint
	// EntryShift is the log2 of the number of entries in one translation table
	EntryShift uint
	// Levels is the number of translation-table levels the hardware walks
	Levels uint
	// EntryAddressWidth is the width in bits of the physical-address field in
	// a table entry
	EntryAddressWidth uint
	// EntryAddressShift is the bit position where the physical-address field
	// begins within a table entry. Most families place it at PageShift; RISC-V
	// places its PPN field at bit 10.
	EntryAddressShift uint
	// PhysOffset is the fixed offset added to a physical address to reach it
	// through the kernel's direct map
	PhysOffset uint64
	// Flags is the entry-flag bit assignment for this family
	Flags EntryFlagSet
}

// Geometry is a Profile together with every constant derived from it. Geometries
// are built once per instruction family through NewGeometry and never change;
// callers read the derived fields rather than recomputing them.
type Geometry struct {
	Profile

	// PageSize is the page size in bytes
	PageSize uint64
	// PageOffsetMask selects the byte-within-page bits of an address
	PageOffsetMask uint64
	// PageAddressShift is the number of address bits the full table walk can
	// translate
	PageAddressShift uint
	// PageAddressSize is the number of bytes the full table walk can cover
	PageAddressSize uint64
	// PageAddressMask selects the translated page-number bits of an address
	PageAddressMask uint64
	// PageNegativeMask selects the address bits beyond the translated range,
	// which canonical addresses sign-extend
	PageNegativeMask uint64
	// EntrySize is the size in bytes of one table entry
	EntrySize uint64
	// Entries is the number of entries in one translation table
	Entries uint64
	// EntryMask selects one level's index bits from a shifted address
	EntryMask uint64
	// EntryAddressSize is the number of distinct values the entry address
	// field can hold
	EntryAddressSize uint64
	// EntryAddressMask selects the address field of a table entry after it has
	// been shifted down by EntryAddressShift
	EntryAddressMask uint64
	// EntryFlagsMask selects every bit of a table entry outside the address
	// field
	EntryFlagsMask uint64
}

// NewGeometry derives the full constant set from profile and validates that the
// result is self-consistent. Implementations hold the result in a package-level
// variable so the validation runs once per family, not per call.
func NewGeometry(profile Profile) (*Geometry, error) {
	if profile.PageShift == 0 || profile.PageShift >= 64 {
		return nil, cerrors.Newf("page shift %d is outside the representable range", profile.PageShift)
	}
	if profile.EntryShift == 0 || profile.EntryShift > profile.PageShift {
		return nil, cerrors.Newf("entry shift %d does not fit a page of shift %d", profile.EntryShift, profile.PageShift)
	}
	if profile.Levels == 0 {
		return nil, cerrors.New("translation level count must be at least 1")
	}

	pageAddressShift := profile.PageShift + profile.Levels*profile.EntryShift
	if pageAddressShift >= 64 {
		return nil, cerrors.Newf("%d levels of %d-bit indices over a %d-bit page offset exceed the machine word",
			profile.Levels, profile.EntryShift, profile.PageShift)
	}

	if profile.EntryAddressWidth == 0 || profile.EntryAddressShift+profile.EntryAddressWidth >= 64 {
		return nil, cerrors.Newf("a %d-bit entry address field at bit %d does not fit a table entry",
			profile.EntryAddressWidth, profile.EntryAddressShift)
	}

	geometry := &Geometry{
		Profile: profile,

		PageSize:         1 << profile.PageShift,
		PageOffsetMask:   (1 << profile.PageShift) - 1,
		PageAddressShift: pageAddressShift,
		PageAddressSize:  1 << pageAddressShift,
		PageAddressMask:  (uint64(1) << pageAddressShift) - (1 << profile.PageShift),
		PageNegativeMask: ^((uint64(1) << pageAddressShift) - 1),
		EntrySize:        1 << (profile.PageShift - profile.EntryShift),
		Entries:          1 << profile.EntryShift,
		EntryMask:        (1 << profile.EntryShift) - 1,
		EntryAddressSize: 1 << profile.EntryAddressWidth,
		EntryAddressMask: (1 << profile.EntryAddressWidth) - 1,
		EntryFlagsMask:   ^(((uint64(1) << profile.EntryAddressWidth) - 1) << profile.EntryAddressShift),
	}

	err := geometry.Validate()
	if err != nil {
		return nil, cerrors.Wrapf(err, "geometry for %s is not self-consistent", profile.Name)
	}

	return geometry, nil
}

// Validate checks the invariants that must hold between the primary and derived
// constants: the address masks partition the machine word, the entry masks
// partition a table entry, a full table of entries fills exactly one page, and
// no flag pattern intrudes on the entry's address field.
func (g *Geometry) Validate() error {
	err := kmem.CheckPow2(g.PageSize, "page size")
	if err != nil {
		return err
	}
	err = kmem.CheckPow2(g.Entries, "entries per table")
	if err != nil {
		return err
	}

	if g.EntrySize*g.Entries != g.PageSize {
		return cerrors.Newf("%d entries of %d bytes do not fill a %d-byte page", g.Entries, g.EntrySize, g.PageSize)
	}

	if g.PageOffsetMask&g.PageAddressMask != 0 ||
		g.PageOffsetMask&g.PageNegativeMask != 0 ||
		g.PageAddressMask&g.PageNegativeMask != 0 {
		return cerrors.New("page offset, page address, and negative masks overlap")
	}
	if g.PageOffsetMask|g.PageAddressMask|g.PageNegativeMask != ^uint64(0) {
		return cerrors.New("page offset, page address, and negative masks do not cover the machine word")
	}

	entryAddressField := g.EntryAddressMask << g.EntryAddressShift
	if entryAddressField&g.EntryFlagsMask != 0 {
		return cerrors.New("entry address field and entry flags mask overlap")
	}
	if entryAddressField|g.EntryFlagsMask != ^uint64(0) {
		return cerrors.New("entry address field and entry flags mask do not cover a table entry")
	}

	if g.Flags.all()&entryAddressField != 0 {
		return cerrors.Newf("entry flag bits %#x intrude on the entry address field %#x", g.Flags.all(), entryAddressField)
	}

	return nil
}

// BuildStatsString writes the geometry constants as a JSON object.
func (g *Geometry) BuildStatsString(writer *jwriter.Writer) {
	obj := writer.Object()
	defer obj.End()

	obj.Name("Name").String(g.Name)
	obj.Name("PageSize").Int(int(g.PageSize))
	obj.Name("Levels").Int(int(g.Levels))
	obj.Name("EntriesPerTable").Int(int(g.Entries))
	obj.Name("EntrySize").Int(int(g.EntrySize))
	obj.Name("PageAddressBits").Int(int(g.PageAddressShift))
	obj.Name("EntryAddressMask").String(fmt.Sprintf("%#x", g.EntryAddressMask<<g.EntryAddressShift))
	obj.Name("EntryFlagsMask").String(fmt.Sprintf("%#x", g.EntryFlagsMask))
	obj.Name("PhysOffset").String(fmt.Sprintf("%#x", g.PhysOffset))
}

func mustGeometry(profile Profile) *Geometry {
	geometry, err := NewGeometry(profile)
	if err != nil {
		panic(err)
	}
	return geometry
}
