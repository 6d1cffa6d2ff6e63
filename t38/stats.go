package t38

// Stats is the redundancy-window accounting SPEC_FULL.md §6 adds from
// original_source/'s internal counters: not prose in spec.md itself,
// but valuable operational visibility for the "5% packet loss"
// scenario in spec.md §8.
type Stats struct {
	// DuplicatesDropped counts redundant copies of an indicator or
	// sig-end packet recognized and discarded by sequence number.
	DuplicatesDropped int

	// MissingData counts gaps detected in an unrepeated data sequence
	// (HDLC-data or T4-non-ECM-data).
	MissingData int
}
