package postgres

// SQL queries for state record storage operations

const (
	// queryPutRecord upserts one state's record document.
	// ON CONFLICT replaces the record wholesale; a loader run always
	// publishes the complete document, never a partial update.
	queryPutRecord = `
		INSERT INTO state_names (state, record, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (state) DO UPDATE
		SET record = EXCLUDED.record, updated_at = NOW()
	`

	// queryGetRecord fetches one state's record document by state code.
	queryGetRecord = `
		SELECT record
		FROM state_names
		WHERE state = $1
	`

	// queryScanRecords fetches every state record. Ordered by state so scans
	// are deterministic.
	queryScanRecords = `
		SELECT record
		FROM state_names
		ORDER BY state ASC
	`
)
