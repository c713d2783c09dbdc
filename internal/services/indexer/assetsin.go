package indexer

// DecodeAssetsIn expands a collateral-membership bitmask against the ordered
// non-base asset symbols of a catalog. Bit i of the mask corresponds to
// symbols[i]; the base asset occupies no bit.
func DecodeAssetsIn(mask uint16, symbols []string) []string {
	var held []string
	for i, symbol := range symbols {
		if mask&(1<<uint(i)) != 0 {
			held = append(held, symbol)
		}
	}
	return held
}
