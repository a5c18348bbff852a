package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// BucketFamily distinguishes the two bucket series a state record carries.
type BucketFamily string

const (
	// FamilyState addresses the state's own frequency-ranked buckets.
	FamilyState BucketFamily = "stateBucket"
	// FamilyOther addresses the supplementary-name buckets.
	FamilyOther BucketFamily = "otherNamesBucket"
)

// BucketRef is a validated bucket address: family prefix plus 1-based ordinal.
type BucketRef struct {
	Family  BucketFamily
	Ordinal int
}

// Key renders the ref as the stored attribute name, e.g. "stateBucket1".
func (r BucketRef) Key() string {
	return string(r.Family) + strconv.Itoa(r.Ordinal)
}

// ParseBucketRef validates a raw bucket identifier against the configured
// bucket counts. The family prefix is checked before the ordinal, so a bad
// prefix is reported even when the ordinal would also be out of range.
// Returned errors carry the user-facing reason and nothing else.
func ParseBucketRef(raw string, stateBuckets, otherBuckets int) (BucketRef, error) {
	switch {
	case strings.HasPrefix(raw, string(FamilyState)):
		ordinal, err := strconv.Atoi(strings.TrimPrefix(raw, string(FamilyState)))
		if err != nil {
			return BucketRef{}, fmt.Errorf("Invalid bucket format. Expected 'stateBucket1' through 'stateBucket%d'", stateBuckets)
		}
		if ordinal < 1 || ordinal > stateBuckets {
			return BucketRef{}, fmt.Errorf("For state buckets, number must be between 1 and %d", stateBuckets)
		}
		return BucketRef{Family: FamilyState, Ordinal: ordinal}, nil

	case strings.HasPrefix(raw, string(FamilyOther)):
		ordinal, err := strconv.Atoi(strings.TrimPrefix(raw, string(FamilyOther)))
		if err != nil {
			return BucketRef{}, fmt.Errorf("Invalid bucket format. Expected 'otherNamesBucket1' or 'otherNamesBucket%d'", otherBuckets)
		}
		if ordinal < 1 || ordinal > otherBuckets {
			return BucketRef{}, fmt.Errorf("For other names buckets, number must be between 1 and %d", otherBuckets)
		}
		return BucketRef{Family: FamilyOther, Ordinal: ordinal}, nil

	default:
		return BucketRef{}, fmt.Errorf("bucket must start with 'stateBucket' or 'otherNamesBucket'")
	}
}
