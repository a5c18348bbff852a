package storage

import (
	"encoding/json"
	"fmt"
)

// Persisted attribute names. The lookup side resolves bucket identifiers
// against these exact keys, so they must match what the loader writes.
const (
	attrState          = "State"
	attrUniqueNames    = "uniqueNamesCount"
	attrTotalNameCount = "totalNameCount"
	attrCountSuffix    = "Count"
)

// StateRecord is the full persisted unit for one state: every packed bucket
// plus summary counts. It is written wholesale by one loader run and is
// read-only until the next run replaces it.
type StateRecord struct {
	State string

	// StateBuckets holds the state's own frequency-ranked buckets, ordinal
	// 1..n in slice order. Always fully populated by the loader (trailing
	// buckets may be empty).
	StateBuckets [][]string

	// OtherBuckets holds the supplementary-name buckets. Nil when the loader
	// ran without a supplementary source; lookups against them resolve empty.
	OtherBuckets [][]string

	UniqueNames    int
	TotalNameCount int
}

// Validate ensures the record can serve as a storage item.
func (r *StateRecord) Validate() error {
	if r.State == "" {
		return fmt.Errorf("state code is required")
	}
	return nil
}

// Names returns the stored bucket addressed by ref, or ok=false when that
// bucket key is absent from the record (e.g. supplementary buckets were never
// computed for this state).
func (r *StateRecord) Names(ref BucketRef) ([]string, bool) {
	var family [][]string
	switch ref.Family {
	case FamilyState:
		family = r.StateBuckets
	case FamilyOther:
		family = r.OtherBuckets
	default:
		return nil, false
	}

	if ref.Ordinal < 1 || ref.Ordinal > len(family) {
		return nil, false
	}
	return family[ref.Ordinal-1], true
}

// OwnNames returns the set of every name in the state's own buckets.
func (r *StateRecord) OwnNames() map[string]struct{} {
	names := make(map[string]struct{})
	for _, bucket := range r.StateBuckets {
		for _, name := range bucket {
			names[name] = struct{}{}
		}
	}
	return names
}

// MarshalJSON renders the record as the flat attribute document the store
// keeps per state: "State", "stateBucket1".."stateBucketN" with per-bucket
// counts, the optional "otherNamesBucket" series, and the summary counts.
// Attribute keys sort deterministically, so republishing identical input
// produces byte-identical documents.
func (r *StateRecord) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, 3+2*(len(r.StateBuckets)+len(r.OtherBuckets)))
	doc[attrState] = r.State

	for i, bucket := range r.StateBuckets {
		ref := BucketRef{Family: FamilyState, Ordinal: i + 1}
		doc[ref.Key()] = bucket
		doc[ref.Key()+attrCountSuffix] = len(bucket)
	}
	for i, bucket := range r.OtherBuckets {
		ref := BucketRef{Family: FamilyOther, Ordinal: i + 1}
		doc[ref.Key()] = bucket
		doc[ref.Key()+attrCountSuffix] = len(bucket)
	}

	doc[attrUniqueNames] = r.UniqueNames
	doc[attrTotalNameCount] = r.TotalNameCount

	return json.Marshal(doc)
}

// UnmarshalJSON reads the flat attribute document back into the record.
// Bucket ordinals are collected contiguously from 1 upward; per-bucket count
// attributes are ignored since they are derivable from the buckets.
func (r *StateRecord) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode state record: %w", err)
	}

	if raw, ok := doc[attrState]; ok {
		if err := json.Unmarshal(raw, &r.State); err != nil {
			return fmt.Errorf("decode %s: %w", attrState, err)
		}
	}

	var err error
	if r.StateBuckets, err = decodeBucketSeries(doc, FamilyState); err != nil {
		return err
	}
	if r.OtherBuckets, err = decodeBucketSeries(doc, FamilyOther); err != nil {
		return err
	}

	if raw, ok := doc[attrUniqueNames]; ok {
		if err := json.Unmarshal(raw, &r.UniqueNames); err != nil {
			return fmt.Errorf("decode %s: %w", attrUniqueNames, err)
		}
	}
	if raw, ok := doc[attrTotalNameCount]; ok {
		if err := json.Unmarshal(raw, &r.TotalNameCount); err != nil {
			return fmt.Errorf("decode %s: %w", attrTotalNameCount, err)
		}
	}

	return nil
}

func decodeBucketSeries(doc map[string]json.RawMessage, family BucketFamily) ([][]string, error) {
	var buckets [][]string
	for i := 1; ; i++ {
		key := BucketRef{Family: family, Ordinal: i}.Key()
		raw, ok := doc[key]
		if !ok {
			break
		}

		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		if names == nil {
			names = []string{}
		}
		buckets = append(buckets, names)
	}
	return buckets, nil
}
