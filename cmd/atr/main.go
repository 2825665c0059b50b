package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "atr",
		Usage: "Manage files on Atari DOS 2 disk images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "layout",
				Usage: "treat images as `LAYOUT` (sd, ed, dd, or auto) instead of guessing",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "read settings from `FILE` instead of ~/" + defaultConfigName,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "describe what's being done on stderr",
			},
			&cli.BoolFlag{
				Name:  "text",
				Usage: "translate line endings between ATASCII and the host for cat, get, and put",
			},
		},
		Before:   loadSettings,
		Metadata: map[string]interface{}{},
		Commands: []*cli.Command{
			{
				Name:                   "ls",
				Usage:                  "List the files on an image",
				ArgsUsage:              "IMAGE",
				UseShortOptionHandling: true,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "long", Aliases: []string{"l"}, Usage: "show sizes and load addresses"},
					&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "show system files too"},
					&cli.BoolFlag{Name: "one", Aliases: []string{"1"}, Usage: "one name per line"},
				},
				Action: listFiles,
			},
			{
				Name:      "cat",
				Usage:     "Write a file to stdout",
				ArgsUsage: "IMAGE NAME",
				Action:    catFile,
			},
			{
				Name:      "get",
				Usage:     "Copy a file off an image",
				ArgsUsage: "IMAGE NAME [LOCAL_PATH]",
				Action:    getFile,
			},
			{
				Name:      "put",
				Usage:     "Copy a file onto an image, replacing any file with the same name",
				ArgsUsage: "IMAGE LOCAL_PATH [NAME]",
				Action:    putFile,
			},
			{
				Name:      "rm",
				Usage:     "Delete files",
				ArgsUsage: "IMAGE NAME...",
				Action:    removeFiles,
			},
			{
				Name:      "mv",
				Usage:     "Rename a file",
				ArgsUsage: "IMAGE OLD_NAME NEW_NAME",
				Action:    renameFile,
			},
			{
				Name:      "lock",
				Usage:     "Protect files from being changed or deleted",
				ArgsUsage: "IMAGE NAME...",
				Action:    lockFiles,
			},
			{
				Name:      "unlock",
				Usage:     "Remove protection from files",
				ArgsUsage: "IMAGE NAME...",
				Action:    unlockFiles,
			},
			{
				Name:      "free",
				Usage:     "Show the free space on an image",
				ArgsUsage: "IMAGE",
				Action:    showFree,
			},
			{
				Name:      "check",
				Usage:     "Check an image for damage and optionally repair it",
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "fix", Usage: "offer to repair each problem found"},
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "with --fix, repair everything without asking"},
					&cli.StringFlag{Name: "backup", Usage: "snapshot the image to `FILE` before the first repair"},
				},
				Action: checkImage,
			},
			{
				Name:      "format",
				Usage:     "Create a blank image",
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "sd", Usage: "single density, 720 sectors of 128 bytes"},
					&cli.BoolFlag{Name: "ed", Usage: "enhanced density, 1040 sectors of 128 bytes"},
					&cli.BoolFlag{Name: "dd", Usage: "double density, 720 sectors of 256 bytes"},
					&cli.StringFlag{Name: "boot", Usage: "write the boot code in `FILE` to the first sectors"},
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "overwrite IMAGE if it exists"},
				},
				Action: formatImage,
			},
			{
				Name:      "restore",
				Usage:     "Expand a snapshot made by check --backup",
				ArgsUsage: "SNAPSHOT IMAGE",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "overwrite IMAGE if it exists"},
				},
				Action: restoreImage,
			},
		},
	}
}

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s", describeError(err))
	}
}
