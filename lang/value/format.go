package value

import "strconv"

// formatNumber renders n the way Lox's `print` statement does: the shortest
// decimal string that round-trips to n.
func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}
