package checker

// Partition splits links into n contiguous chunks in input order. The first
// len(links) mod n chunks hold one extra element, so chunk sizes differ by
// at most one. Some chunks are empty when len(links) < n.
func Partition(links []string, n int) [][]string {
	if n <= 0 {
		return nil
	}
	chunks := make([][]string, n)
	size, extra := len(links)/n, len(links)%n

	start := 0
	for i := range n {
		end := start + size
		if i < extra {
			end++
		}
		chunks[i] = links[start:end:end]
		start = end
	}
	return chunks
}
