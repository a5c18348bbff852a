package bucketing

// Serialized-size model for a packed bucket, approximating a JSON array of
// quoted names: each name costs len(name)+4 (quotes, comma, space) and every
// bucket pays a fixed 2-byte overhead for the surrounding brackets.
const (
	nameOverhead      = 4
	containerOverhead = 2
)

// NameCost returns the marginal serialized cost of one name inside a bucket.
func NameCost(name string) int {
	return len(name) + nameOverhead
}

// SerializedSize returns the modeled serialized size of a whole bucket.
func SerializedSize(names []string) int {
	size := containerOverhead
	for _, name := range names {
		size += NameCost(name)
	}
	return size
}

// Pack splits ranked names into at most numBuckets ordered buckets using
// greedy first-fit-forward packing: names are taken in rank order, a bucket
// is closed as soon as the next name would push its serialized size past
// maxBucketSize, and once the last bucket closes every remaining name is
// dropped. The truncation is deliberate; callers that care count it via
// PackedCount.
//
// The result always has exactly numBuckets entries (trailing buckets may be
// empty) and is byte-for-byte reproducible for the same input and sizing.
func Pack(ranked []RankedName, maxBucketSize, numBuckets int) [][]string {
	names := make([]string, len(ranked))
	for i, r := range ranked {
		names[i] = r.Name
	}
	return packNames(names, nil, maxBucketSize, numBuckets)
}

// PackSupplementary packs candidate names with the same greedy rules after
// dropping any name present in exclude. The candidates' original order is
// preserved; exclusion happens before any size accounting.
func PackSupplementary(names []string, exclude map[string]struct{}, maxBucketSize, numBuckets int) [][]string {
	return packNames(names, exclude, maxBucketSize, numBuckets)
}

// PackedCount returns the number of names across all buckets.
func PackedCount(buckets [][]string) int {
	n := 0
	for _, b := range buckets {
		n += len(b)
	}
	return n
}

func packNames(names []string, exclude map[string]struct{}, maxBucketSize, numBuckets int) [][]string {
	if numBuckets <= 0 {
		return nil
	}

	buckets := make([][]string, numBuckets)
	for i := range buckets {
		buckets[i] = []string{}
	}

	idx := 0
	size := containerOverhead

	for _, name := range names {
		if exclude != nil {
			if _, dup := exclude[name]; dup {
				continue
			}
		}

		cost := NameCost(name)
		if size+cost > maxBucketSize {
			idx++
			size = containerOverhead
			if idx >= numBuckets {
				break
			}
		}

		buckets[idx] = append(buckets[idx], name)
		size += cost
	}

	return buckets
}
