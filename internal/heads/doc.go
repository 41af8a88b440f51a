// Package heads detects note heads on the staves of one system.
//
// Detection runs in two modes per staff. Seed mode looks for heads on
// either side of vertical stem seeds. Range mode sweeps every abscissa of
// each line and ledger. Both modes evaluate head templates against the
// frozen distance field around the theoretical ordinate of each pitch.
//
// Candidates are then resolved per staff: near-identical matches are
// aggregated, range heads conflicting with seed heads are dropped,
// duplicates are removed and remaining overlaps are recorded as exclusions
// in the system graph. Seed heads feed a HeadSeedTally, later folded into a
// sheet-wide HeadSeedScale by Analyze.
package heads
