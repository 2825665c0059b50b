// Package common contains definitions of fundamental types used across the
// file system implementation and its tools.
package common

// Sector is a 1-based sector number on a disk image. Sector 0 doesn't exist and
// is never read or written.
type Sector uint

// NoSector marks the end of a sector chain. Since sector 0 doesn't exist, a
// next-sector pointer of 0 can't be mistaken for a real link.
const NoSector = Sector(0)

// FileIndex is the position of an entry in the directory. It doubles as the
// owner tag written into every data sector of the file.
type FileIndex uint

// MaxFileIndex is the largest value that fits in the six-bit owner tag.
const MaxFileIndex = FileIndex(63)
