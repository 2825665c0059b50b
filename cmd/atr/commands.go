package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dargueta/atrdisk"
	"github.com/dargueta/atrdisk/disks"
	"github.com/dargueta/atrdisk/file_systems/dos2"
	"github.com/dargueta/atrdisk/utilities/compression"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func loadSettings(cCtx *cli.Context) error {
	conf, err := LoadConfig(cCtx.String("config"))
	if err != nil {
		return err
	}
	cCtx.App.Metadata[configKey] = conf
	return nil
}

func settings(cCtx *cli.Context) Config {
	conf, ok := cCtx.App.Metadata[configKey].(Config)
	if !ok {
		return DefaultConfig()
	}
	return conf
}

// verbose returns a logger that writes to stderr if --verbose was given, and
// discards everything otherwise.
func verbose(cCtx *cli.Context) *log.Logger {
	if !cCtx.Bool("verbose") {
		return log.New(io.Discard, "", 0)
	}
	return log.New(cCtx.App.ErrWriter, "atr: ", 0)
}

// requestedLayout is the layout from --layout, falling back to the config file.
func requestedLayout(cCtx *cli.Context) (disks.Layout, error) {
	if cCtx.IsSet("layout") {
		return disks.ParseLayout(cCtx.String("layout"))
	}
	return settings(cCtx).Layout, nil
}

// needArgs fails unless the command got between `min` and `max` positional
// arguments. A negative `max` means there's no upper limit.
func needArgs(cCtx *cli.Context, min, max int) error {
	count := cCtx.Args().Len()
	if count < min || (max >= 0 && count > max) {
		return fmt.Errorf(
			"wrong number of arguments; usage: %s %s %s",
			cCtx.App.Name,
			cCtx.Command.Name,
			cCtx.Command.ArgsUsage)
	}
	return nil
}

// openImage mounts the image named by the first argument. It's opened
// read-only unless `writable` is set.
func openImage(cCtx *cli.Context, writable bool) (*dos2.Session, error) {
	layout, err := requestedLayout(cCtx)
	if err != nil {
		return nil, err
	}

	flags := atrdisk.MountFlagsReadOnly
	if writable {
		flags = atrdisk.MountFlagsAllowAll
	}

	path := cCtx.Args().First()
	session, err := dos2.OpenFile(path, dos2.Options{Layout: layout, Flags: flags})
	if err != nil {
		return nil, err
	}
	verbose(cCtx).Printf("opened %s as %s", path, session.Geometry().Name)
	return session, nil
}

// closeImage closes `session`, keeping the first of `err` and the close error.
func closeImage(session *dos2.Session, err error) error {
	closeErr := session.Close()
	if err != nil {
		return err
	}
	return closeErr
}

func eol(cCtx *cli.Context) byte {
	return settings(cCtx).EOL
}

////////////////////////////////////////////////////////////////////////////////

func listFiles(cCtx *cli.Context) (err error) {
	if err = needArgs(cCtx, 1, 1); err != nil {
		return err
	}
	session, err := openImage(cCtx, false)
	if err != nil {
		return err
	}
	defer func() { err = closeImage(session, err) }()

	entries, err := session.ReadDir()
	if err != nil {
		return err
	}
	entries = visibleEntries(entries, cCtx.Bool("all") || settings(cCtx).ShowSystemFiles)

	var lines []string
	switch {
	case cCtx.Bool("long"):
		stat, err := session.FSStat()
		if err != nil {
			return err
		}
		lines = formatLong(entries, stat)
	case cCtx.Bool("one"):
		for _, entry := range entries {
			lines = append(lines, entry.Name)
		}
	default:
		lines = formatShort(entries, listingWidth)
	}

	for _, line := range lines {
		fmt.Fprintln(cCtx.App.Writer, line)
	}
	return nil
}

// readAtariFile returns the contents of a file, translated to host line endings
// if --text was given.
func readAtariFile(cCtx *cli.Context, session *dos2.Session, name string) ([]byte, error) {
	data, err := session.ReadFile(name)
	if err != nil {
		return nil, err
	}
	if cCtx.Bool("text") {
		data = toHostText(data, eol(cCtx))
	}
	return data, nil
}

func catFile(cCtx *cli.Context) (err error) {
	if err = needArgs(cCtx, 2, 2); err != nil {
		return err
	}
	session, err := openImage(cCtx, false)
	if err != nil {
		return err
	}
	defer func() { err = closeImage(session, err) }()

	data, err := readAtariFile(cCtx, session, cCtx.Args().Get(1))
	if err != nil {
		return err
	}
	_, err = cCtx.App.Writer.Write(data)
	return err
}

func getFile(cCtx *cli.Context) (err error) {
	if err = needArgs(cCtx, 2, 3); err != nil {
		return err
	}
	session, err := openImage(cCtx, false)
	if err != nil {
		return err
	}
	defer func() { err = closeImage(session, err) }()

	name := cCtx.Args().Get(1)
	localPath := cCtx.Args().Get(2)
	if localPath == "" {
		localPath = name
	}

	data, err := readAtariFile(cCtx, session, name)
	if err != nil {
		return err
	}
	err = os.WriteFile(localPath, data, 0o644)
	if err != nil {
		return err
	}
	verbose(cCtx).Printf("copied %s to %s, %d bytes", name, localPath, len(data))
	return nil
}

func putFile(cCtx *cli.Context) (err error) {
	if err = needArgs(cCtx, 2, 3); err != nil {
		return err
	}

	localPath := cCtx.Args().Get(1)
	name := cCtx.Args().Get(2)
	if name == "" {
		name = filepath.Base(localPath)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	if cCtx.Bool("text") {
		data = toAtariText(data, eol(cCtx))
	}

	session, err := openImage(cCtx, true)
	if err != nil {
		return err
	}
	defer func() { err = closeImage(session, err) }()

	err = session.WriteFile(name, data)
	if err != nil {
		return err
	}
	verbose(cCtx).Printf("copied %s to %s, %d bytes", localPath, name, len(data))
	return nil
}

// forEachName opens the image for writing and calls `action` for each name
// after the image path. It stops at the first failure.
func forEachName(cCtx *cli.Context, action func(*dos2.Session, string) error) (err error) {
	if err = needArgs(cCtx, 2, -1); err != nil {
		return err
	}
	session, err := openImage(cCtx, true)
	if err != nil {
		return err
	}
	defer func() { err = closeImage(session, err) }()

	for _, name := range cCtx.Args().Tail() {
		err = action(session, name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		verbose(cCtx).Printf("%s: %s", cCtx.Command.Name, name)
	}
	return nil
}

func removeFiles(cCtx *cli.Context) error {
	return forEachName(cCtx, func(session *dos2.Session, name string) error {
		return session.Remove(name)
	})
}

func lockFiles(cCtx *cli.Context) error {
	return forEachName(cCtx, func(session *dos2.Session, name string) error {
		return session.SetLocked(name, true)
	})
}

func unlockFiles(cCtx *cli.Context) error {
	return forEachName(cCtx, func(session *dos2.Session, name string) error {
		return session.SetLocked(name, false)
	})
}

func renameFile(cCtx *cli.Context) (err error) {
	if err = needArgs(cCtx, 3, 3); err != nil {
		return err
	}
	session, err := openImage(cCtx, true)
	if err != nil {
		return err
	}
	defer func() { err = closeImage(session, err) }()

	return session.Rename(cCtx.Args().Get(1), cCtx.Args().Get(2))
}

func showFree(cCtx *cli.Context) (err error) {
	if err = needArgs(cCtx, 1, 1); err != nil {
		return err
	}
	session, err := openImage(cCtx, false)
	if err != nil {
		return err
	}
	defer func() { err = closeImage(session, err) }()

	stat, err := session.FSStat()
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, formatFree(stat))
	return nil
}

////////////////////////////////////////////////////////////////////////////////

// formatLayout picks the layout for `format`: a density flag, then --layout,
// then the config file, then single density.
func formatLayout(cCtx *cli.Context) (disks.Layout, error) {
	chosen := []disks.Layout{}
	for _, layout := range []disks.Layout{
		disks.SingleDensity, disks.EnhancedDensity, disks.DoubleDensity,
	} {
		if cCtx.Bool(layout.String()) {
			chosen = append(chosen, layout)
		}
	}
	if len(chosen) > 1 {
		return disks.LayoutAuto, errors.New("only one of --sd, --ed, and --dd can be given")
	}
	if len(chosen) == 1 {
		return chosen[0], nil
	}

	layout, err := requestedLayout(cCtx)
	if err != nil {
		return disks.LayoutAuto, err
	}
	if layout == disks.LayoutAuto {
		return disks.SingleDensity, nil
	}
	return layout, nil
}

// refuseOverwrite fails if `path` exists and --force wasn't given.
func refuseOverwrite(cCtx *cli.Context, path string) error {
	if cCtx.Bool("force") {
		return nil
	}
	_, err := os.Stat(path)
	if err == nil {
		return fmt.Errorf("%s already exists; use --force to overwrite it", path)
	}
	return nil
}

func formatImage(cCtx *cli.Context) error {
	if err := needArgs(cCtx, 1, 1); err != nil {
		return err
	}
	path := cCtx.Args().First()

	layout, err := formatLayout(cCtx)
	if err != nil {
		return err
	}
	err = refuseOverwrite(cCtx, path)
	if err != nil {
		return err
	}

	var boot []byte
	if bootPath := cCtx.String("boot"); bootPath != "" {
		boot, err = os.ReadFile(bootPath)
		if err != nil {
			return err
		}
	}

	err = dos2.CreateImage(path, layout, boot)
	if err != nil {
		return err
	}
	verbose(cCtx).Printf("formatted %s as %s", path, layout)
	return nil
}

func restoreImage(cCtx *cli.Context) error {
	if err := needArgs(cCtx, 2, 2); err != nil {
		return err
	}
	snapshotPath := cCtx.Args().Get(0)
	imagePath := cCtx.Args().Get(1)

	err := refuseOverwrite(cCtx, imagePath)
	if err != nil {
		return err
	}

	output, err := os.Create(imagePath)
	if err != nil {
		return err
	}
	size, err := compression.RestoreSnapshot(snapshotPath, output)
	closeErr := output.Close()
	if err != nil {
		os.Remove(imagePath)
		return err
	}
	if closeErr != nil {
		return closeErr
	}
	verbose(cCtx).Printf("restored %s to %s, %d bytes", snapshotPath, imagePath, size)
	return nil
}

////////////////////////////////////////////////////////////////////////////////

// repairPolicy decides which repairs `check` applies. It also takes the backup
// snapshot the first time a repair is approved.
type repairPolicy struct {
	cCtx       *cli.Context
	session    *dos2.Session
	fixAll     bool
	backupPath string
	backedUp   bool
	backupErr  error
	answers    *promptReader
}

func (policy *repairPolicy) approve(finding dos2.Finding) bool {
	if policy.backupErr != nil {
		return false
	}

	approved := policy.fixAll
	if !approved {
		approved = policy.answers.confirm(
			policy.cCtx.App.ErrWriter,
			fmt.Sprintf("%s\nFix? [y/N] ", finding))
	}
	if !approved {
		return false
	}

	if policy.backupPath != "" && !policy.backedUp {
		_, err := compression.SnapshotImage(policy.session.Stream(), policy.backupPath)
		if err != nil {
			policy.backupErr = fmt.Errorf("not repairing anything, backup failed: %w", err)
			return false
		}
		policy.backedUp = true
		verbose(policy.cCtx).Printf("saved snapshot to %s", policy.backupPath)
	}
	return true
}

func checkImage(cCtx *cli.Context) (err error) {
	if err = needArgs(cCtx, 1, 1); err != nil {
		return err
	}
	conf := settings(cCtx)
	fix := cCtx.Bool("fix")

	session, err := openImage(cCtx, fix)
	if err != nil {
		return err
	}
	defer func() { err = closeImage(session, err) }()

	var approve dos2.RepairFunc
	var policy *repairPolicy
	if fix {
		policy = &repairPolicy{
			cCtx:       cCtx,
			session:    session,
			fixAll:     cCtx.Bool("yes") || conf.FixAll,
			backupPath: cCtx.String("backup"),
			answers:    newPromptReader(cCtx.App.Reader),
		}
		if policy.backupPath == "" && conf.BackupBeforeFix {
			policy.backupPath = cCtx.Args().First() + ".bak.rle.gz"
		}
		approve = policy.approve
	}

	report, err := session.Check(approve)
	if report == nil {
		return err
	}

	unresolved := 0
	for _, finding := range report.Findings {
		line := finding.String()
		if finding.Repaired {
			line += " (fixed)"
		} else if finding.Severity == dos2.SeverityError {
			unresolved++
		}
		fmt.Fprintln(cCtx.App.Writer, line)
	}
	fmt.Fprintf(
		cCtx.App.Writer,
		"%d problems found, %d fixed\n",
		len(report.Findings),
		report.Repaired())

	if err != nil {
		return err
	}
	if policy != nil && policy.backupErr != nil {
		return policy.backupErr
	}
	if unresolved > 0 {
		return cli.Exit(fmt.Sprintf("%d errors left unfixed", unresolved), 1)
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////

// describeError adds a hint to the errors users are most likely to run into.
func describeError(err error) string {
	hint := ""
	switch {
	case errors.Is(err, atrdisk.ErrNotFound):
		hint = "no such file on the image"
	case errors.Is(err, atrdisk.ErrPermissionDenied):
		hint = "file is locked; unlock it first"
	case errors.Is(err, atrdisk.ErrNoSpaceOnDevice):
		hint = "not enough free space on the image"
	case errors.Is(err, atrdisk.ErrDirectoryFull):
		hint = "the directory already has 64 files"
	case errors.Is(err, atrdisk.ErrUnknownGeometry):
		hint = "try --layout if this is an ATR image"
	}

	message := strings.TrimSpace(err.Error())
	if hint == "" {
		return message
	}
	return fmt.Sprintf("%s (%s)", message, hint)
}
