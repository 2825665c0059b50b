package dos2

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dargueta/atrdisk"
	c "github.com/dargueta/atrdisk/file_systems/common"
)

var _ atrdisk.Driver = (*Session)(nil)

// ReadDir returns the in-use directory entries in on-disk order. The size and
// load segments of each file are found by reading it. A file whose chain can't
// be followed is given a size of -1 rather than failing the whole listing.
func (session *Session) ReadDir() ([]atrdisk.DirectoryEntry, error) {
	entries, err := session.ReadEntries()
	if err != nil {
		return nil, err
	}

	listing := make([]atrdisk.DirectoryEntry, 0, len(entries))
	for _, entry := range entries {
		item := atrdisk.DirectoryEntry{
			Name:        entry.Name(),
			Index:       int(entry.Index),
			Locked:      entry.Locked(),
			StartSector: uint(entry.StartSector),
			Sectors:     entry.SectorCount,
			Size:        -1,
		}

		contents, err := session.ReadChain(entry.StartSector)
		if err == nil {
			item.Size = int64(len(contents))
			item.Segments = ParseSegments(contents)
		} else if errors.Is(err, atrdisk.ErrIOFailed) {
			return nil, err
		}
		listing = append(listing, item)
	}
	return listing, nil
}

// ReadFile returns the contents of the named file.
func (session *Session) ReadFile(name string) ([]byte, error) {
	entry, err := session.Find(name)
	if err != nil {
		return nil, err
	}
	return session.ReadChain(entry.StartSector)
}

func validateName(name string) error {
	encoded := EncodeName(name)
	if bytes.Equal(encoded[:NameLength], []byte(strings.Repeat(" ", NameLength))) {
		return atrdisk.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("file name %q has no name part", name))
	}
	return nil
}

// WriteFile stores `data` under `name`, replacing any existing file with that
// name. An existing file keeps its directory slot. Locked files can't be
// replaced.
//
// The old file's sectors are reused for the new one. If there isn't room for
// the new file, the image is left untouched.
func (session *Session) WriteFile(name string, data []byte) error {
	err := session.checkWritable()
	if err != nil {
		return err
	}
	err = validateName(name)
	if err != nil {
		return err
	}

	bm, err := session.LoadBitmap(false, nil)
	if err != nil {
		return err
	}

	var index c.FileIndex
	existing, err := session.Find(name)
	switch {
	case err == nil:
		if existing.Locked() {
			return atrdisk.ErrPermissionDenied.WithMessage(
				fmt.Sprintf("%q is locked", existing.Name()))
		}
		err = session.DeleteChain(bm, existing.StartSector)
		if err != nil {
			return err
		}
		index = existing.Index
	case errors.Is(err, atrdisk.ErrNotFound):
		index, err = session.FindFreeSlot()
		if err != nil {
			return err
		}
	default:
		return err
	}

	first, err := session.WriteChain(bm, data, index)
	if err != nil {
		return err
	}

	err = session.WriteEntry(index, name, first, session.SectorsNeeded(len(data)))
	if err != nil {
		return err
	}
	return session.StoreBitmap(bm)
}

// Remove deletes the named file and frees its sectors. If the file's chain is
// damaged nothing is changed; run a consistency check first.
func (session *Session) Remove(name string) error {
	err := session.checkWritable()
	if err != nil {
		return err
	}

	entry, err := session.Find(name)
	if err != nil {
		return err
	}
	if entry.Locked() {
		return atrdisk.ErrPermissionDenied.WithMessage(
			fmt.Sprintf("%q is locked", entry.Name()))
	}

	bm, err := session.LoadBitmap(false, nil)
	if err != nil {
		return err
	}
	err = session.DeleteChain(bm, entry.StartSector)
	if err != nil {
		return err
	}

	_, err = session.FindAndDelete(name)
	if err != nil {
		return err
	}
	return session.StoreBitmap(bm)
}

// Rename changes the name of a file. It fails with [atrdisk.ErrExists] if
// another file already has the new name. Locked files can't be renamed.
func (session *Session) Rename(oldName, newName string) error {
	err := session.checkWritable()
	if err != nil {
		return err
	}
	err = validateName(newName)
	if err != nil {
		return err
	}

	entry, err := session.Find(oldName)
	if err != nil {
		return err
	}
	if entry.Locked() {
		return atrdisk.ErrPermissionDenied.WithMessage(
			fmt.Sprintf("%q is locked", entry.Name()))
	}

	// Renaming to a name that only differs in case is allowed, and is how the
	// padding or case of a name written by another tool can be normalized.
	newEncoded := EncodeName(newName)
	if !bytes.EqualFold(newEncoded[:], entry.RawName[:]) {
		exists, err := session.Exists(newName)
		if err != nil {
			return err
		}
		if exists {
			return atrdisk.ErrExists.WithMessage(fmt.Sprintf("%q", newName))
		}
	}

	_, err = session.FindAndRename(oldName, newName)
	return err
}

// Exists returns true if a file with the given name is in the directory.
func (session *Session) Exists(name string) (bool, error) {
	_, err := session.Find(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, atrdisk.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// SetLocked sets or clears the locked flag of a file.
func (session *Session) SetLocked(name string, locked bool) error {
	err := session.checkWritable()
	if err != nil {
		return err
	}

	entry, err := session.Find(name)
	if err != nil {
		return err
	}

	return session.updateEntry(entry.Index, func(entry *Entry) {
		if locked {
			entry.Flags |= FlagLocked
		} else {
			entry.Flags &^= FlagLocked
		}
	})
}

// FSStat returns space information for the image. Free bytes are counted in
// whole sectors; multiply FreeSectors by PayloadBytesPerSector for the amount of
// file data that still fits.
func (session *Session) FSStat() (atrdisk.FSStat, error) {
	bm, err := session.LoadBitmap(false, nil)
	if err != nil {
		return atrdisk.FSStat{}, err
	}
	entries, err := session.ReadEntries()
	if err != nil {
		return atrdisk.FSStat{}, err
	}

	freeSectors := bm.FreeCount()
	return atrdisk.FSStat{
		BytesPerSector:        session.geometry.BytesPerSector,
		PayloadBytesPerSector: session.geometry.PayloadSize(),
		TotalSectors:          session.geometry.TotalSectors,
		FreeSectors:           freeSectors,
		FreeBytes:             uint64(freeSectors) * uint64(session.geometry.BytesPerSector),
		Files:                 uint(len(entries)),
		FilesFree:             uint(MaxFiles - len(entries)),
		MaxNameLength:         NameLength + 1 + ExtensionLength,
	}, nil
}
