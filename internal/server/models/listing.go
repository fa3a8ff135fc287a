package models

// FileInfo describes a regular file in a directory listing.
// LastModified is in seconds since the Unix epoch.
type FileInfo struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"last_modified"`
}

// DirInfo describes a subdirectory in a directory listing.
type DirInfo struct {
	Name         string `json:"name"`
	LastModified int64  `json:"last_modified"`
}

// Listing holds the direct children of a directory, files and directories
// kept apart and each sorted by name.
type Listing struct {
	Files       []FileInfo `json:"files"`
	Directories []DirInfo  `json:"directories"`
}
