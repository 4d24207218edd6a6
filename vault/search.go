package vault

// search runs a binary search over a descending index of n entries. cmp
// reports the sign of entry i relative to the target: positive when the entry
// sorts before it. On a miss it returns -1, or with closest set the last index
// sorting before the target (which is -1 when none does).
func search(n int, cmp func(i int) int, closest bool) int {
	start, end := 0, n-1
	for start <= end {
		middle := int(uint(start+end) >> 1)
		switch c := cmp(middle); {
		case c > 0:
			start = middle + 1
		case c < 0:
			end = middle - 1
		default:
			return middle
		}
	}
	if closest {
		return start - 1
	}
	return -1
}
