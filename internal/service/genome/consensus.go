package genome

// Consensus applies variants to a copy of ref. Positions outside ref are
// skipped and only the first base of a multi-base allele is used.
func Consensus(ref []byte, variants Variants) []byte {
	ret := make([]byte, len(ref))
	copy(ret, ref)

	for pos, alt := range variants {
		idx := pos - 1
		if idx < 0 || idx >= len(ret) || alt == "" {
			continue
		}
		ret[idx] = alt[0]
	}
	return ret
}
