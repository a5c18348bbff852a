package bucketing

import (
	"strconv"
	"strings"
)

// recordFieldCount is the exact number of comma-separated fields in a raw
// data line: state, gender, year, name, count.
const recordFieldCount = 5

// FrequencyRecord is one raw birth-record entry for a state.
type FrequencyRecord struct {
	State  string
	Gender string
	Year   int
	Name   string
	Count  int
}

// ParseRecord parses a raw data line such as "OH,F,1972,Amy,1407".
// Returns ok=false for lines that do not have exactly five fields or whose
// year/count fields are not integers. Callers skip such lines and continue;
// malformed input is never fatal.
func ParseRecord(line string) (FrequencyRecord, bool) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != recordFieldCount {
		return FrequencyRecord{}, false
	}

	year, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return FrequencyRecord{}, false
	}

	count, err := strconv.Atoi(strings.TrimSpace(parts[4]))
	if err != nil {
		return FrequencyRecord{}, false
	}

	return FrequencyRecord{
		State:  parts[0],
		Gender: parts[1],
		Year:   year,
		Name:   parts[3],
		Count:  count,
	}, true
}
