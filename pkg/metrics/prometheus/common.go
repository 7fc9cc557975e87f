package prometheus

import "strconv"

// tableIDLabel converts a table id to its Prometheus label-value form.
func tableIDLabel(tableID int32) string {
	return strconv.FormatInt(int64(tableID), 10)
}
