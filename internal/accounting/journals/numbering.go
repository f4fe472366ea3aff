package journals

import "fmt"

// FormatNumber renders <PREFIX>-<YYYYMM>-<NNNNN>.
func FormatNumber(t Type, year, month int, seq int64) string {
	return fmt.Sprintf("%s-%04d%02d-%05d", t.Prefix(), year, month, seq)
}
