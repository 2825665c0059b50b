package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dargueta/atrdisk"
	"github.com/dargueta/atrdisk/disks"
	"github.com/dargueta/atrdisk/file_systems/dos2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type runResult struct {
	Stdout string
	Stderr string
	Err    error
}

// runApp runs the command line with `input` as stdin. The user's real config
// file is never read.
func runApp(t *testing.T, input string, args ...string) runResult {
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(input)
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"atr"}, args...))
	return runResult{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}

func mustRun(t *testing.T, args ...string) string {
	result := runApp(t, "", args...)
	require.NoError(t, result.Err, "atr %s", strings.Join(args, " "))
	return result.Stdout
}

func newImagePath(t *testing.T, formatArgs ...string) string {
	path := filepath.Join(t.TempDir(), "disk.atr")
	mustRun(t, append(append([]string{"format"}, formatArgs...), path)...)
	return path
}

func writeLocalFile(t *testing.T, name string, contents []byte) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, contents, 0o644))
	return path
}

func imageSize(t *testing.T, path string) int64 {
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}

func TestFormat__Layouts(t *testing.T) {
	sizes := map[string]int64{
		"--sd": disks.HeaderSize + 92160,
		"--ed": disks.HeaderSize + 133120,
		"--dd": disks.HeaderSize + 183936,
	}
	for flag, size := range sizes {
		assert.Equal(t, size, imageSize(t, newImagePath(t, flag)), flag)
	}
	assert.Equal(t, int64(disks.HeaderSize+92160), imageSize(t, newImagePath(t)))
}

func TestFormat__LayoutFromConfig(t *testing.T) {
	config := writeConfig(t, "default_layout = \"ed\"\n")
	path := filepath.Join(t.TempDir(), "disk.atr")
	mustRun(t, "--config", config, "format", path)
	assert.Equal(t, int64(disks.HeaderSize+133120), imageSize(t, path))
}

func TestFormat__Refusals(t *testing.T) {
	path := newImagePath(t)
	result := runApp(t, "", "format", path)
	assert.ErrorContains(t, result.Err, "already exists")

	mustRun(t, "format", "--force", "--dd", path)
	assert.Equal(t, int64(disks.HeaderSize+183936), imageSize(t, path))

	result = runApp(t, "", "format", "--sd", "--dd", filepath.Join(t.TempDir(), "x.atr"))
	assert.ErrorContains(t, result.Err, "only one of")
}

func TestFormat__Boot(t *testing.T) {
	boot := writeLocalFile(t, "boot.bin", []byte{0x00, 0x03, 0x00, 0x07})
	path := newImagePath(t, "--boot", boot)

	image, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x03, 0x00, 0x07}, image[16:20])
}

func TestPutListCatGet(t *testing.T) {
	path := newImagePath(t)
	local := writeLocalFile(t, "hello.txt", []byte("HELLO\nWORLD\n"))

	mustRun(t, "--text", "put", path, local)
	mustRun(t, "put", path, local, "raw.txt")
	mustRun(t, "put", path, writeLocalFile(t, "dos.sys", []byte{1, 2, 3}))

	assert.Equal(t, "hello.txt\nraw.txt\n", mustRun(t, "ls", "-1", path))
	assert.Equal(t, "dos.sys\nhello.txt\nraw.txt\n", mustRun(t, "ls", "-1", "-a", path))
	assert.Equal(t, cell("hello.txt")+"raw.txt\n", mustRun(t, "ls", path))

	assert.Equal(t, "HELLO\x9bWORLD\x9b", mustRun(t, "cat", path, "hello.txt"))
	assert.Equal(t, "HELLO\nWORLD\n", mustRun(t, "--text", "cat", path, "HELLO.TXT"))
	assert.Equal(t, "HELLO\nWORLD\n", mustRun(t, "cat", path, "raw.txt"))

	output := filepath.Join(t.TempDir(), "out.txt")
	mustRun(t, "--text", "get", path, "hello.txt", output)
	contents, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, []byte("HELLO\nWORLD\n"), contents)

	long := mustRun(t, "ls", "-la", path)
	assert.Contains(t, long, "-rw--     12 (  1) hello.txt")
	assert.Contains(t, long, "-rw-s      3 (  1) dos.sys")
	assert.Contains(t, long, "3 entries")
	assert.Contains(t, long, "704 free sectors, 90112 free bytes")
}

func TestRemoveRenameLock(t *testing.T) {
	path := newImagePath(t)
	local := writeLocalFile(t, "a.txt", []byte("data"))
	mustRun(t, "put", path, local)
	mustRun(t, "put", path, local, "b.txt")

	mustRun(t, "mv", path, "a.txt", "c.txt")
	assert.Equal(t, "b.txt\nc.txt\n", mustRun(t, "ls", "-1", path))

	result := runApp(t, "", "mv", path, "c.txt", "b.txt")
	assert.ErrorIs(t, result.Err, atrdisk.ErrExists)

	mustRun(t, "lock", path, "c.txt")
	result = runApp(t, "", "rm", path, "c.txt")
	assert.ErrorIs(t, result.Err, atrdisk.ErrPermissionDenied)
	assert.Contains(t, describeError(result.Err), "unlock it first")

	mustRun(t, "unlock", path, "c.txt")
	mustRun(t, "rm", path, "c.txt", "b.txt")
	assert.Equal(t, "", mustRun(t, "ls", "-1", path))
	assert.Equal(t, "707 free sectors, 90496 free bytes\n", mustRun(t, "free", path))

	result = runApp(t, "", "rm", path, "gone.txt")
	assert.ErrorIs(t, result.Err, atrdisk.ErrNotFound)
}

func TestReadCommandsDontWrite(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can write to read-only files")
	}

	path := newImagePath(t)
	mustRun(t, "put", path, writeLocalFile(t, "a.txt", []byte("data")))
	require.NoError(t, os.Chmod(path, 0o444))
	t.Cleanup(func() { os.Chmod(path, 0o644) })

	mustRun(t, "ls", path)
	mustRun(t, "cat", path, "a.txt")
	mustRun(t, "free", path)
	mustRun(t, "check", path)
}

func TestWrongArgumentCount(t *testing.T) {
	result := runApp(t, "", "cat", "only-one-arg")
	assert.ErrorContains(t, result.Err, "usage: atr cat IMAGE NAME")
}

// corruptFreeCount breaks the VTOC free count, which check reports as an error.
func corruptFreeCount(t *testing.T, path string) {
	session, err := dos2.OpenFile(path, dos2.Options{})
	require.NoError(t, err)
	vtoc, err := session.ReadSector(360)
	require.NoError(t, err)
	vtoc[3] = 0x10
	vtoc[4] = 0x00
	require.NoError(t, session.WriteSector(360, vtoc))
	require.NoError(t, session.Close())
}

func TestCheck__Clean(t *testing.T) {
	path := newImagePath(t)
	assert.Equal(t, "0 problems found, 0 fixed\n", mustRun(t, "check", path))
}

func TestCheck__ReportsWithoutFixing(t *testing.T) {
	path := newImagePath(t)
	corruptFreeCount(t, path)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	result := runApp(t, "", "check", path)
	var exitErr cli.ExitCoder
	require.True(t, errors.As(result.Err, &exitErr))
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, result.Stdout, "VTOC says 16 sectors are free, bitmap has 707")
	assert.Contains(t, result.Stdout, "1 problems found, 0 fixed")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCheck__InteractiveFixWithBackup(t *testing.T) {
	path := newImagePath(t)
	corruptFreeCount(t, path)
	corrupted, err := os.ReadFile(path)
	require.NoError(t, err)

	result := runApp(t, "yes\n", "check", "--fix", path)
	require.NoError(t, result.Err)
	assert.Contains(t, result.Stderr, "Fix? [y/N]")
	assert.Contains(t, result.Stdout, "(fixed)")
	assert.Contains(t, result.Stdout, "1 problems found, 1 fixed")
	assert.Equal(t, "0 problems found, 0 fixed\n", mustRun(t, "check", path))

	backup := path + ".bak.rle.gz"
	restored := filepath.Join(t.TempDir(), "restored.atr")
	mustRun(t, "restore", backup, restored)
	contents, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, corrupted, contents)

	result = runApp(t, "", "restore", backup, restored)
	assert.ErrorContains(t, result.Err, "already exists")
}

func TestCheck__DeclinedFix(t *testing.T) {
	path := newImagePath(t)
	corruptFreeCount(t, path)

	result := runApp(t, "n\n", "check", "--fix", path)
	assert.Error(t, result.Err)
	assert.Contains(t, result.Stdout, "1 problems found, 0 fixed")

	_, err := os.Stat(path + ".bak.rle.gz")
	assert.ErrorIs(t, err, os.ErrNotExist, "no backup without a repair")
}

func TestCheck__FixAllExplicitBackup(t *testing.T) {
	path := newImagePath(t)
	corruptFreeCount(t, path)
	backup := filepath.Join(t.TempDir(), "before.gz")

	result := runApp(t, "", "check", "--fix", "--yes", "--backup", backup, path)
	require.NoError(t, result.Err)
	assert.NotContains(t, result.Stderr, "Fix?")
	assert.FileExists(t, backup)
	assert.Equal(t, "0 problems found, 0 fixed\n", mustRun(t, "check", path))
}

func TestCheck__BackupFailureBlocksRepairs(t *testing.T) {
	path := newImagePath(t)
	corruptFreeCount(t, path)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	backup := filepath.Join(t.TempDir(), "missing-dir", "backup.gz")
	result := runApp(t, "", "check", "--fix", "--yes", "--backup", backup, path)
	assert.ErrorContains(t, result.Err, "backup failed")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLayoutOverride(t *testing.T) {
	path := newImagePath(t, "--sd")
	result := runApp(t, "", "--layout", "dd", "ls", path)
	assert.NoError(t, result.Err, "a forced layout is trusted")

	result = runApp(t, "", "--layout", "hd", "ls", path)
	assert.ErrorIs(t, result.Err, atrdisk.ErrInvalidArgument)
}

func TestVerbose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.atr")
	result := runApp(t, "", "-v", "format", "--ed", path)
	require.NoError(t, result.Err)
	assert.Contains(t, result.Stderr, "formatted "+path+" as ed")

	result = runApp(t, "", "format", "--force", path)
	require.NoError(t, result.Err)
	assert.Empty(t, result.Stderr)
}
