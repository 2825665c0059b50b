package atrdisk

// Driver is the interface front ends use to manipulate the files on a mounted
// disk image. All names are flat; there are no directories.
type Driver interface {
	// ReadDir returns every file in the directory, in on-disk order.
	ReadDir() ([]DirectoryEntry, error)
	// ReadFile returns the contents of the named file.
	ReadFile(name string) ([]byte, error)
	// WriteFile creates the named file, replacing any existing file of the
	// same name.
	WriteFile(name string, data []byte) error
	Remove(name string) error
	// Rename changes the name of a file. It fails with [ErrExists] if a file
	// with the new name is already present.
	Rename(oldName, newName string) error
	Exists(name string) (bool, error)
	FSStat() (FSStat, error)

	// Close flushes all changes to the image and frees all resources. The
	// driver must not be used after this function is called.
	Close() error
}

// DirectoryEntry describes a single file found in the directory of an image.
type DirectoryEntry struct {
	// Name is the decoded name of the file, lowercase, with no trailing "." if
	// the extension is empty.
	Name string
	// Index is the position of the entry in the directory, which is also the
	// owner ID embedded in each of the file's data sectors.
	Index       int
	Locked      bool
	StartSector uint
	// Sectors is the sector count stored in the directory entry. It's not
	// guaranteed to match the length of the file's sector chain.
	Sectors uint
	// Size is the number of data bytes in the file, found by walking its
	// sector chain.
	Size int64
	// Segments holds the load segments of a binary load file. It's nil for
	// every other kind of file.
	Segments []Segment
}

// Segment is one contiguous range of memory loaded by a binary load file.
type Segment struct {
	Start uint16
	// End is the last address loaded by the segment, inclusive.
	End     uint16
	HasInit bool
	Init    uint16
	HasRun  bool
	Run     uint16
}

// FSStat gives space information about a mounted image.
type FSStat struct {
	BytesPerSector uint
	// PayloadBytesPerSector is the amount of file data a single sector can
	// hold, after subtracting the chain-link bytes.
	PayloadBytesPerSector uint
	TotalSectors          uint
	FreeSectors           uint
	// FreeBytes is FreeSectors times BytesPerSector.
	FreeBytes     uint64
	Files         uint
	FilesFree     uint
	MaxNameLength uint
}
