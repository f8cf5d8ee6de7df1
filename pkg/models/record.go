package models

// FileRecord holds the metadata extracted for a single file. One record is
// published per file, serialized to JSON. A record is always complete:
// extraction either fills every field or produces no record at all.
type FileRecord struct {
	Path          string `json:"file_path"`      // Absolute path
	Name          string `json:"file_name"`      // Base name
	Extension     string `json:"file_extension"` // Lower-cased, with leading dot ("" if none)
	SizeBytes     uint64 `json:"file_size_bytes"`
	SizeHuman     string `json:"file_size_human"` // e.g. "1.50 KB"
	CreatedTime   string `json:"created_time"`    // RFC 3339
	ModifiedTime  string `json:"modified_time"`   // RFC 3339
	AccessedTime  string `json:"accessed_time"`   // RFC 3339
	IsSymlink     bool   `json:"is_symlink"`
	ScanTimestamp string `json:"scan_timestamp"` // RFC 3339, captured at extraction time
	SHA256Hash    string `json:"sha256_hash,omitempty"`
}

// ScanStats holds the running counters for one scan invocation.
// Counters only ever increase; they are reset when a new scan starts.
type ScanStats struct {
	Processed uint64 // callback succeeded
	Failed    uint64 // callback returned an error
	Skipped   uint64 // filtered out or permission denied
}

// Total returns the number of entries accounted for by the counters.
func (s ScanStats) Total() uint64 {
	return s.Processed + s.Failed + s.Skipped
}
