package dos2

import (
	"fmt"

	c "github.com/dargueta/atrdisk/file_systems/common"
)

// Values in the checker's ownership map that aren't directory indexes.
const (
	ownerNone   = -1
	ownerSystem = -2
)

// checkState is everything the checker learns while walking the directory.
type checkState struct {
	session  *Session
	reporter *Reporter
	// expected is the bitmap the disk should have, built from the reserved
	// sectors and every sector reachable from the directory.
	expected *Bitmap
	// owners maps each sector number to the directory index of the file that
	// claimed it, or one of ownerNone or ownerSystem.
	owners []int
	names  map[int]string
}

// Check walks the directory and every file's sector chain, rebuilding the
// allocation bitmap from scratch, and compares what it finds against what's on
// disk. Each problem found is added to the report.
//
// Repairable problems are passed to `approve`, and only the repairs it accepts
// are written. Each accepted repair is written as soon as it's approved. With a
// nil `approve` or on a read-only session nothing is ever written.
//
// The returned error is either a failure to read the image, which aborts the
// check, or a combination of every approved repair that failed to be written.
// In the latter case the report is still complete.
func (session *Session) Check(approve RepairFunc) (*Report, error) {
	reporter := NewReporter(approve)
	if !session.flags.CanWrite() {
		reporter.disableRepairs()
	}

	state := &checkState{
		session:  session,
		reporter: reporter,
		expected: NewBitmap(session.geometry.AddressableSectors),
		owners:   make([]int, session.geometry.TotalSectors+1),
		names:    map[int]string{ownerSystem: "the system"},
	}

	for i := range state.owners {
		if session.geometry.IsReserved(uint(i)) {
			state.owners[i] = ownerSystem
		} else {
			state.owners[i] = ownerNone
			state.expected.Mark(c.Sector(i), false)
		}
	}

	err := state.scanDirectory()
	if err != nil {
		return nil, err
	}

	stored, err := session.LoadBitmap(true, reporter)
	if err != nil {
		return nil, err
	}
	state.compareBitmaps(stored)

	return reporter.Report(), reporter.Err()
}

func (state *checkState) scanDirectory() error {
	slots, err := state.session.ReadAllSlots()
	if err != nil {
		return err
	}

	ended := false
	for _, entry := range slots {
		if entry.IsEndMarker() {
			ended = true
			continue
		}
		if ended {
			state.reporter.note(Finding{
				Kind:     EntryAfterEnd,
				Severity: SeverityWarning,
				Sector:   state.entrySector(entry.Index),
				Entry:    int(entry.Index),
				Name:     entry.Name(),
				Message: fmt.Sprintf(
					"entry %d has flags %#02x but comes after the end of the directory",
					entry.Index,
					entry.Flags),
			})
			continue
		}
		if !entry.InUse() {
			continue
		}

		state.names[int(entry.Index)] = entry.Name()
		err = state.checkFile(entry)
		if err != nil {
			return err
		}
	}
	return nil
}

func (state *checkState) entrySector(index c.FileIndex) c.Sector {
	return c.Sector(state.session.geometry.DirectorySector) +
		c.Sector(index/EntriesPerSector)
}

func (state *checkState) checkFile(entry Entry) error {
	session := state.session
	reporter := state.reporter
	index := int(entry.Index)
	name := entry.Name()

	newFinding := func(kind FindingKind, severity Severity, sector c.Sector, format string, args ...interface{}) Finding {
		return Finding{
			Kind:     kind,
			Severity: severity,
			Sector:   sector,
			Entry:    index,
			Name:     name,
			Message:  fmt.Sprintf(format, args...),
		}
	}

	if entry.Flags&FlagOpenedForOutput != 0 {
		finding := newFinding(
			OpenFlagSet,
			SeverityWarning,
			state.entrySector(entry.Index),
			"file is still marked as open for output")
		reporter.offer(finding, func() error {
			return session.updateEntry(entry.Index, func(e *Entry) {
				e.Flags &^= FlagOpenedForOutput
			})
		})
	}

	payloadSize := session.geometry.PayloadSize()
	chainLength := uint(0)
	completed := false
	sector := entry.StartSector

	for hops := 0; ; hops++ {
		if sector == c.NoSector {
			completed = true
			break
		}
		if hops >= MaxChainHops {
			reporter.note(newFinding(
				ChainTooLong,
				SeverityError,
				sector,
				"chain is longer than %d sectors", MaxChainHops))
			break
		}
		if uint(sector) >= session.geometry.AddressableSectors {
			reporter.note(newFinding(
				BadSector,
				SeverityError,
				sector,
				"chain links to sector %d, which can't hold file data", sector))
			break
		}

		data, err := session.ReadSector(sector)
		if err != nil {
			return err
		}
		if uint(len(data)) < session.geometry.BytesPerSector {
			reporter.note(newFinding(
				BadSector,
				SeverityError,
				sector,
				"chain links to boot sector %d", sector))
			break
		}

		previousOwner := state.owners[sector]
		if previousOwner == index {
			reporter.note(newFinding(
				InfiniteLoop,
				SeverityError,
				sector,
				"chain loops back to sector %d", sector))
			break
		}

		chainLength++
		link := session.decodeLink(data)

		if previousOwner != ownerNone {
			reporter.note(newFinding(
				CrossLink,
				SeverityError,
				sector,
				"sector %d is also claimed by %s", sector, state.ownerName(previousOwner)))
		} else {
			state.owners[sector] = index
			state.expected.Mark(sector, true)

			if link.Owner != entry.Index {
				finding := newFinding(
					OwnerMismatch,
					SeverityWarning,
					sector,
					"sector %d is tagged with file %d, expected %d",
					sector,
					link.Owner,
					entry.Index)
				fixSector := sector
				fixed := link
				fixed.Owner = entry.Index
				reporter.offer(finding, func() error {
					session.encodeLink(data, fixed)
					return session.WriteSector(fixSector, data)
				})
			}
		}

		isLast := link.Next == c.NoSector
		switch {
		case link.ByteCount > payloadSize:
			reporter.note(newFinding(
				ByteCountMismatch,
				SeverityError,
				sector,
				"sector %d claims %d bytes, but holds at most %d",
				sector,
				link.ByteCount,
				payloadSize))
		case !isLast && link.ByteCount != payloadSize:
			reporter.note(newFinding(
				ByteCountMismatch,
				SeverityWarning,
				sector,
				"sector %d is in the middle of the file but only holds %d bytes",
				sector,
				link.ByteCount))
		case isLast && link.ByteCount == 0 && chainLength > 1:
			reporter.note(newFinding(
				ByteCountMismatch,
				SeverityWarning,
				sector,
				"last sector %d of the file is empty",
				sector))
		}

		sector = link.Next
	}

	// A chain that was cut short says nothing reliable about the file's size.
	if completed && chainLength != entry.SectorCount {
		finding := newFinding(
			SizeMismatch,
			SeverityWarning,
			state.entrySector(entry.Index),
			"directory says %d sectors, chain has %d",
			entry.SectorCount,
			chainLength)
		reporter.offer(finding, func() error {
			return session.updateEntry(entry.Index, func(e *Entry) {
				e.SectorCount = chainLength
			})
		})
	}
	return nil
}

func (state *checkState) ownerName(owner int) string {
	name, ok := state.names[owner]
	if ok {
		return name
	}
	return fmt.Sprintf("file %d", owner)
}

// compareBitmaps reports every sector whose stored state disagrees with the
// reconstructed one, then offers to replace the stored bitmap entirely.
func (state *checkState) compareBitmaps(stored *Bitmap) {
	if stored.Equal(state.expected) {
		return
	}

	mismatches := 0
	for i := uint(0); i < state.expected.Len(); i++ {
		sector := c.Sector(i)
		storedFree := stored.IsFree(sector)
		expectedFree := state.expected.IsFree(sector)
		if storedFree == expectedFree {
			continue
		}

		mismatches++
		finding := Finding{
			Kind:   BitmapMismatch,
			Sector: sector,
			Entry:  -1,
		}
		if storedFree {
			finding.Severity = SeverityError
			finding.Message = fmt.Sprintf(
				"sector %d is marked free, but is used by %s",
				sector,
				state.ownerName(state.owners[sector]))
		} else {
			finding.Severity = SeverityWarning
			finding.Message = fmt.Sprintf(
				"sector %d is marked in use, but nothing uses it", sector)
		}
		state.reporter.note(finding)
	}

	if mismatches == 0 {
		return
	}

	finding := Finding{
		Kind:     BitmapRebuild,
		Severity: SeverityError,
		Sector:   c.Sector(state.session.geometry.VTOCSector),
		Entry:    -1,
		Message:  fmt.Sprintf("%d sectors are marked wrong in the bitmap", mismatches),
	}
	state.reporter.offer(finding, func() error {
		return state.session.StoreBitmap(state.expected)
	})
}
