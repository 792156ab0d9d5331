package supervisor

import "strconv"

func itoa(i int) string { return strconv.Itoa(i) }

func itoa64(i uint64) string { return strconv.FormatUint(i, 10) }
