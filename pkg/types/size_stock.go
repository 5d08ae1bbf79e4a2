package types

// SizeStock maps a size label to its available count for variant products.
type SizeStock map[string]int

// Sum returns the total count across all sizes.
func (s SizeStock) Sum() int {
	total := 0
	for _, qty := range s {
		total += qty
	}
	return total
}

// Available returns the count for the given size label.
func (s SizeStock) Available(size string) int {
	if s == nil {
		return 0
	}
	return s[size]
}
