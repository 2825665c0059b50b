package dos2

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/dargueta/atrdisk"
	c "github.com/dargueta/atrdisk/file_systems/common"
	"github.com/noxer/bytewriter"
)

// Directory entry flags.
const (
	FlagOpenedForOutput = 0x01
	FlagDOS2            = 0x02
	FlagLocked          = 0x20
	FlagInUse           = 0x40
	FlagDeleted         = 0x80
)

// flagsNeverUsed marks the end of the directory. No entry at or after the first
// one with these flags is part of the directory.
const flagsNeverUsed = 0x00

// newEntryFlags is what DOS 2 writes for a freshly closed file.
const newEntryFlags = FlagInUse | FlagDOS2

const (
	DirentSize       = 16
	EntriesPerSector = 8
	MaxFiles         = 64
	NameLength       = 8
	ExtensionLength  = 3
)

// rawDirent is the on-disk form of a directory entry.
type rawDirent struct {
	Flags       uint8
	SectorCount uint16
	StartSector uint16
	Name        [NameLength + ExtensionLength]byte
}

// Entry is a decoded directory entry.
type Entry struct {
	Index       c.FileIndex
	Flags       uint8
	SectorCount uint
	StartSector c.Sector
	// RawName is the name and extension as stored, padded with spaces.
	RawName [NameLength + ExtensionLength]byte
}

// Name gives the user-friendly form of the entry's name.
func (entry Entry) Name() string {
	return DecodeName(entry.RawName)
}

func (entry Entry) InUse() bool {
	return entry.Flags&FlagInUse != 0
}

func (entry Entry) Locked() bool {
	return entry.Flags&FlagLocked != 0
}

func (entry Entry) IsEndMarker() bool {
	return entry.Flags == flagsNeverUsed
}

// IsSystemFile returns true for files with a SYS extension, which DOS hides
// from directory listings.
func (entry Entry) IsSystemFile() bool {
	return bytes.EqualFold(entry.RawName[NameLength:], []byte("SYS"))
}

func decodeEntry(raw []byte, index c.FileIndex) Entry {
	var dirent rawDirent
	binary.Read(bytes.NewReader(raw[:DirentSize]), binary.LittleEndian, &dirent)
	return Entry{
		Index:       index,
		Flags:       dirent.Flags,
		SectorCount: uint(dirent.SectorCount),
		StartSector: c.Sector(dirent.StartSector),
		RawName:     dirent.Name,
	}
}

func encodeEntry(entry *Entry, raw []byte) {
	dirent := rawDirent{
		Flags:       entry.Flags,
		SectorCount: uint16(entry.SectorCount),
		StartSector: uint16(entry.StartSector),
		Name:        entry.RawName,
	}
	// rawDirent is exactly DirentSize bytes, so the write can't fail.
	writer := bytewriter.New(raw[:DirentSize])
	binary.Write(writer, binary.LittleEndian, &dirent)
}

// EncodeName converts a file name to its on-disk form. The name is split at the
// last period, lowercase letters are converted to uppercase, and each part is
// padded with spaces. Characters that don't fit are dropped.
func EncodeName(name string) [NameLength + ExtensionLength]byte {
	var encoded [NameLength + ExtensionLength]byte
	for i := range encoded {
		encoded[i] = ' '
	}

	stem := name
	extension := ""
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		stem = name[:dot]
		extension = name[dot+1:]
	}

	copyUpper(encoded[:NameLength], stem)
	copyUpper(encoded[NameLength:], extension)
	return encoded
}

func copyUpper(dest []byte, source string) {
	for i := 0; i < len(dest) && i < len(source); i++ {
		char := source[i]
		if char >= 'a' && char <= 'z' {
			char -= 'a' - 'A'
		}
		dest[i] = char
	}
}

// DecodeName converts an on-disk name to its user-friendly form. Uppercase
// letters become lowercase, padding is removed, and the period is omitted if
// the extension is empty.
func DecodeName(raw [NameLength + ExtensionLength]byte) string {
	stem := bytes.TrimRight(raw[:NameLength], " ")
	extension := bytes.TrimRight(raw[NameLength:], " ")

	var builder strings.Builder
	builder.Write(lowerASCII(stem))
	if len(extension) > 0 {
		builder.WriteByte('.')
		builder.Write(lowerASCII(extension))
	}
	return builder.String()
}

func lowerASCII(source []byte) []byte {
	result := make([]byte, len(source))
	for i, char := range source {
		if char >= 'A' && char <= 'Z' {
			char += 'a' - 'A'
		}
		result[i] = char
	}
	return result
}

////////////////////////////////////////////////////////////////////////////////
// Directory traversal

// dirSlot is one directory entry along with the sector it lives in, so that it
// can be modified in place.
type dirSlot struct {
	Entry
	sector c.Sector
	buffer []byte
	offset int
}

func (slot *dirSlot) save(session *Session) error {
	encodeEntry(&slot.Entry, slot.buffer[slot.offset:])
	return session.WriteSector(slot.sector, slot.buffer)
}

// walkDirectory calls `visit` for each directory entry in order. If `toEnd` is
// false it stops at the end-of-directory marker, otherwise it visits all 64
// slots. Walking stops early if `visit` returns true or an error.
func (session *Session) walkDirectory(toEnd bool, visit func(slot *dirSlot) (bool, error)) error {
	firstSector := c.Sector(session.geometry.DirectorySector)
	for i := uint(0); i < session.geometry.DirectorySectors; i++ {
		sector := firstSector + c.Sector(i)
		buffer, err := session.ReadSector(sector)
		if err != nil {
			return err
		}

		// Only the first 128 bytes hold entries, even in double density.
		for j := 0; j < EntriesPerSector; j++ {
			slot := dirSlot{
				Entry:  decodeEntry(buffer[j*DirentSize:], c.FileIndex(int(i)*EntriesPerSector+j)),
				sector: sector,
				buffer: buffer,
				offset: j * DirentSize,
			}
			if !toEnd && slot.IsEndMarker() {
				return nil
			}

			done, err := visit(&slot)
			if err != nil || done {
				return err
			}
		}
	}
	return nil
}

// ReadEntries returns every in-use entry before the end of the directory.
func (session *Session) ReadEntries() ([]Entry, error) {
	entries := []Entry{}
	err := session.walkDirectory(false, func(slot *dirSlot) (bool, error) {
		if slot.InUse() {
			entries = append(entries, slot.Entry)
		}
		return false, nil
	})
	return entries, err
}

// ReadAllSlots returns all 64 directory entries, in use or not, including any
// past the end-of-directory marker.
func (session *Session) ReadAllSlots() ([]Entry, error) {
	entries := make([]Entry, 0, MaxFiles)
	err := session.walkDirectory(true, func(slot *dirSlot) (bool, error) {
		entries = append(entries, slot.Entry)
		return false, nil
	})
	return entries, err
}

func errNotFound(name string) error {
	return atrdisk.ErrNotFound.WithMessage(fmt.Sprintf("%q", name))
}

// findSlot returns the in-use entry matching `name`, comparing normalized
// names without regard to case.
func (session *Session) findSlot(name string) (*dirSlot, error) {
	encoded := EncodeName(name)
	var found *dirSlot

	err := session.walkDirectory(false, func(slot *dirSlot) (bool, error) {
		if slot.InUse() && bytes.EqualFold(slot.RawName[:], encoded[:]) {
			found = slot
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errNotFound(name)
	}
	return found, nil
}

// Find returns the directory entry for `name`, or [atrdisk.ErrNotFound].
func (session *Session) Find(name string) (Entry, error) {
	slot, err := session.findSlot(name)
	if err != nil {
		return Entry{}, err
	}
	return slot.Entry, nil
}

// FindAndDelete marks the entry for `name` as deleted and returns it as it was
// before deletion. The file's sectors are not freed; use [Session.DeleteChain]
// for that.
func (session *Session) FindAndDelete(name string) (Entry, error) {
	err := session.checkWritable()
	if err != nil {
		return Entry{}, err
	}

	slot, err := session.findSlot(name)
	if err != nil {
		return Entry{}, err
	}

	original := slot.Entry
	slot.Flags = FlagDeleted
	return original, slot.save(session)
}

// FindAndRename changes the name of the entry for `oldName`. It doesn't check
// whether `newName` is already taken.
func (session *Session) FindAndRename(oldName, newName string) (Entry, error) {
	err := session.checkWritable()
	if err != nil {
		return Entry{}, err
	}

	slot, err := session.findSlot(oldName)
	if err != nil {
		return Entry{}, err
	}

	slot.RawName = EncodeName(newName)
	return slot.Entry, slot.save(session)
}

// FindFreeSlot returns the index of the first entry not in use. Deleted
// entries are reused.
func (session *Session) FindFreeSlot() (c.FileIndex, error) {
	index := c.FileIndex(0)
	found := false

	err := session.walkDirectory(true, func(slot *dirSlot) (bool, error) {
		if !slot.InUse() {
			index = slot.Index
			found = true
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, atrdisk.ErrDirectoryFull
	}
	return index, nil
}

// WriteEntry overwrites the directory entry at `index` with a new, closed,
// unlocked file.
func (session *Session) WriteEntry(
	index c.FileIndex, name string, startSector c.Sector, sectorCount uint,
) error {
	return session.updateEntry(index, func(entry *Entry) {
		entry.Flags = newEntryFlags
		entry.SectorCount = sectorCount
		entry.StartSector = startSector
		entry.RawName = EncodeName(name)
	})
}

// updateEntry reads the entry at `index`, passes it to `update`, and writes the
// result back.
func (session *Session) updateEntry(index c.FileIndex, update func(entry *Entry)) error {
	err := session.checkWritable()
	if err != nil {
		return err
	}
	if index > c.MaxFileIndex {
		return atrdisk.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("directory index %d not in [0, %d]", index, c.MaxFileIndex))
	}

	sector := c.Sector(session.geometry.DirectorySector) + c.Sector(index/EntriesPerSector)
	buffer, err := session.ReadSector(sector)
	if err != nil {
		return err
	}

	offset := int(index%EntriesPerSector) * DirentSize
	slot := dirSlot{
		Entry:  decodeEntry(buffer[offset:], index),
		sector: sector,
		buffer: buffer,
		offset: offset,
	}
	update(&slot.Entry)
	return slot.save(session)
}
