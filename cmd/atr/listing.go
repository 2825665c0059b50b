package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dargueta/atrdisk"
)

// Short listings put names in fixed-width cells, as many as fit on a line.
const (
	cellWidth    = 13
	listingWidth = 80
)

// wrapLine adds `token` to the line being built. If the token doesn't fit in
// `width` columns, the line built so far is returned as `emitted` and the token
// starts the next one. A token wider than `width` on its own still gets a line
// to itself.
func wrapLine(line, token string, width int) (emitted, next string) {
	if line == "" {
		return "", token
	}
	if len(line)+len(token) > width {
		return line, token
	}
	return "", line + token
}

// isSystemFile mirrors DOS hiding files with a SYS extension.
func isSystemFile(name string) bool {
	return strings.HasSuffix(name, ".sys")
}

// visibleEntries drops system files unless `all` is set, and sorts the rest by
// name.
func visibleEntries(entries []atrdisk.DirectoryEntry, all bool) []atrdisk.DirectoryEntry {
	visible := make([]atrdisk.DirectoryEntry, 0, len(entries))
	for _, entry := range entries {
		if all || !isSystemFile(entry.Name) {
			visible = append(visible, entry)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].Name < visible[j].Name
	})
	return visible
}

// formatShort lays out names in columns, top to bottom then left to right, the
// way `ls` does.
func formatShort(entries []atrdisk.DirectoryEntry, width int) []string {
	if len(entries) == 0 {
		return nil
	}

	columns := width / cellWidth
	if columns < 1 {
		columns = 1
	}
	rows := (len(entries) + columns - 1) / columns

	lines := []string{}
	line := ""
	for row := 0; row < rows; row++ {
		for column := 0; column < columns; column++ {
			cell := strings.Repeat(" ", cellWidth)
			n := row + column*rows
			if n < len(entries) {
				cell = fmt.Sprintf("%-*s ", cellWidth-1, entries[n].Name)
			}

			var emitted string
			emitted, line = wrapLine(line, cell, columns*cellWidth)
			if emitted != "" {
				lines = append(lines, strings.TrimRight(emitted, " "))
			}
		}
	}
	if line != "" {
		lines = append(lines, strings.TrimRight(line, " "))
	}
	return lines
}

// formatLongEntry gives one line of a long listing. The permission-like prefix
// shows whether the file is writable, a binary load file, and a system file.
func formatLongEntry(entry atrdisk.DirectoryEntry) string {
	writable := 'w'
	if entry.Locked {
		writable = '-'
	}
	executable := '-'
	if len(entry.Segments) > 0 {
		executable = 'x'
	}
	system := '-'
	if isSystemFile(entry.Name) {
		system = 's'
	}

	line := fmt.Sprintf(
		"-r%c%c%c %6d (%3d) %-13s",
		writable,
		executable,
		system,
		entry.Size,
		entry.Sectors,
		entry.Name)

	if len(entry.Segments) > 0 {
		first := entry.Segments[0]
		line += fmt.Sprintf(" (load_start=$%x load_end=$%x", first.Start, first.End)
		for _, segment := range entry.Segments {
			if segment.HasRun {
				line += fmt.Sprintf(" run=$%x", segment.Run)
			}
		}
		line += ")"
	}
	return strings.TrimRight(line, " ")
}

// formatLong gives a full listing with totals and free space.
func formatLong(entries []atrdisk.DirectoryEntry, stat atrdisk.FSStat) []string {
	lines := []string{""}
	totalSectors := uint(0)
	totalBytes := int64(0)
	for _, entry := range entries {
		lines = append(lines, formatLongEntry(entry))
		totalSectors += entry.Sectors
		if entry.Size > 0 {
			totalBytes += entry.Size
		}
	}

	return append(
		lines,
		"",
		fmt.Sprintf("%d entries", len(entries)),
		"",
		fmt.Sprintf("%d sectors, %d bytes", totalSectors, totalBytes),
		"",
		formatFree(stat),
		"",
	)
}

func formatFree(stat atrdisk.FSStat) string {
	return fmt.Sprintf("%d free sectors, %d free bytes", stat.FreeSectors, stat.FreeBytes)
}
