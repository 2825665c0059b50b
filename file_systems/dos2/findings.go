package dos2

import (
	"fmt"

	c "github.com/dargueta/atrdisk/file_systems/common"
	"github.com/hashicorp/go-multierror"
)

// Severity ranks how bad a [Finding] is.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// FindingKind identifies the kind of problem a [Finding] describes.
type FindingKind int

const (
	// FreeCountMismatch: the VTOC's free sector count disagrees with its
	// bitmap.
	FreeCountMismatch FindingKind = iota
	// NominalCountMismatch: the VTOC's usable sector count is wrong for the
	// layout.
	NominalCountMismatch
	// TypeCodeMismatch: the VTOC's type code isn't the one DOS 2 writes.
	TypeCodeMismatch
	// ExtFreeCountMismatch: the second VTOC's free sector count disagrees with
	// its bitmap.
	ExtFreeCountMismatch
	// BitmapMismatch: a single sector's free bit disagrees with what the
	// directory and sector chains say. Not repairable on its own; see
	// BitmapRebuild.
	BitmapMismatch
	// BitmapRebuild is raised once if there were any bitmap mismatches. Its
	// repair replaces the whole bitmap.
	BitmapRebuild
	// SizeMismatch: the sector count in a directory entry isn't the length of
	// the file's chain.
	SizeMismatch
	// CrossLink: a sector is claimed by more than one file, or by a file and
	// the system.
	CrossLink
	// InfiniteLoop: a file's chain comes back to one of its own sectors.
	InfiniteLoop
	// OwnerMismatch: a data sector's owner tag isn't the index of the file
	// that links to it.
	OwnerMismatch
	// ByteCountMismatch: a data sector's valid byte count is impossible for
	// its position in the chain.
	ByteCountMismatch
	// OpenFlagSet: a file was never closed after being opened for output.
	OpenFlagSet
	// EntryAfterEnd: a directory entry is in use but comes after the end of
	// the directory.
	EntryAfterEnd
	// ChainTooLong: a chain didn't end within the hop limit.
	ChainTooLong
	// BadSector: a chain links to a sector that can't hold file data.
	BadSector
)

var findingKindNames = map[FindingKind]string{
	FreeCountMismatch:    "free-count-mismatch",
	NominalCountMismatch: "nominal-count-mismatch",
	TypeCodeMismatch:     "type-code-mismatch",
	ExtFreeCountMismatch: "ext-free-count-mismatch",
	BitmapMismatch:       "bitmap-mismatch",
	BitmapRebuild:        "bitmap-rebuild",
	SizeMismatch:         "size-mismatch",
	CrossLink:            "cross-link",
	InfiniteLoop:         "infinite-loop",
	OwnerMismatch:        "owner-mismatch",
	ByteCountMismatch:    "byte-count-mismatch",
	OpenFlagSet:          "open-flag-set",
	EntryAfterEnd:        "entry-after-end",
	ChainTooLong:         "chain-too-long",
	BadSector:            "bad-sector",
}

func (kind FindingKind) String() string {
	name, ok := findingKindNames[kind]
	if ok {
		return name
	}
	return fmt.Sprintf("FindingKind(%d)", int(kind))
}

// Finding is a single problem found by the consistency checker.
type Finding struct {
	Kind     FindingKind
	Severity Severity
	// Sector is the sector the problem was found in, or [c.NoSector] if it
	// isn't tied to one.
	Sector c.Sector
	// Entry is the directory index of the file involved, or -1.
	Entry int
	// Name is the decoded name of the file involved, if any.
	Name    string
	Message string
	// Repairable is true if the checker knows how to fix the problem.
	Repairable bool
	// Repaired is true if a repair was approved and written to the image.
	Repaired bool
}

func (f Finding) String() string {
	if f.Name != "" {
		return fmt.Sprintf("%s: %s: %s", f.Severity, f.Name, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Severity, f.Message)
}

// RepairFunc decides whether a repair should be applied. It's called once per
// repairable finding, before anything is written.
type RepairFunc func(finding Finding) bool

// Report is the result of a consistency check.
type Report struct {
	Findings []Finding
	// Modified is true if at least one repair was written to the image.
	Modified bool
}

// Repaired gives the number of findings that were fixed.
func (report *Report) Repaired() int {
	total := 0
	for _, finding := range report.Findings {
		if finding.Repaired {
			total++
		}
	}
	return total
}

// Reporter collects findings and applies the repairs its [RepairFunc]
// approves.
type Reporter struct {
	approve    RepairFunc
	report     Report
	canRepair  bool
	repairErrs *multierror.Error
}

// NewReporter creates a reporter that consults `approve` for each repairable
// finding. A nil `approve` rejects every repair.
func NewReporter(approve RepairFunc) *Reporter {
	return &Reporter{approve: approve, canRepair: approve != nil}
}

// Report returns everything collected so far.
func (reporter *Reporter) Report() *Report {
	report := reporter.report
	report.Findings = append([]Finding(nil), reporter.report.Findings...)
	return &report
}

// Err returns the repairs that were approved but failed to be written, or nil.
func (reporter *Reporter) Err() error {
	return reporter.repairErrs.ErrorOrNil()
}

// disableRepairs makes the reporter reject every repair without asking.
func (reporter *Reporter) disableRepairs() {
	reporter.canRepair = false
}

func (reporter *Reporter) note(finding Finding) {
	reporter.report.Findings = append(reporter.report.Findings, finding)
}

// offer records a finding and runs `fix` if the repair is approved. A failed fix
// is remembered and returned by [Reporter.Err]; it doesn't stop the check.
func (reporter *Reporter) offer(finding Finding, fix func() error) {
	finding.Repairable = true
	if reporter.canRepair && reporter.approve(finding) {
		err := fix()
		if err != nil {
			reporter.repairErrs = multierror.Append(
				reporter.repairErrs,
				fmt.Errorf("repairing %s: %w", finding.Kind, err))
		} else {
			finding.Repaired = true
			reporter.report.Modified = true
		}
	}
	reporter.note(finding)
}
