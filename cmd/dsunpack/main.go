// Command dsunpack unpacks the Dark Souls PC archive files found in the
// current directory into a loose file tree and patches the game executable
// to read from it, following the sequence in
// original_source/unpacker_file_handler.py: attempt_unpack.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/HotPocketRemix/dsunpack/internal/ds"
	"github.com/HotPocketRemix/dsunpack/internal/dscheck"
	"github.com/HotPocketRemix/dsunpack/internal/dsexe"
)

const backupDirName = "unpackDS-backup"

var warn = color.New(color.FgYellow).SprintFunc()
var bad = color.New(color.FgRed).SprintFunc()

func main() {
	app := &cli.App{
		Name:  "dsunpack",
		Usage: "unpack Dark Souls PC archives into a loose file tree for modding",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "answer yes to every confirmation prompt (non-interactive use)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "path to the log file",
				Value: "unpackDS-latestlog.txt",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, bad(err.Error()))
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	fs := afero.NewOsFs()
	assumeYes := c.Bool("yes")

	log := logrus.New()
	logFile, err := fs.OpenFile(c.String("log-file"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()
	log.SetOutput(logFile)
	log.SetLevel(logrus.DebugLevel)

	u := &unpacker{fs: fs, log: log, assumeYes: assumeYes, stdin: bufio.NewReader(os.Stdin)}
	return u.attemptUnpack()
}

type unpacker struct {
	fs        afero.Fs
	log       *logrus.Logger
	assumeYes bool
	stdin     *bufio.Reader
}

// confirm asks the user a yes/no question, bypassed entirely (always true)
// when --yes was given, mirroring original_source's yes_no prompt loop.
func (u *unpacker) confirm(question string) bool {
	if u.assumeYes {
		return true
	}
	for {
		fmt.Print(warn(question) + " [Y]es / [N]o  ")
		line, err := u.stdin.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes", "ye":
			return true
		case "n", "no":
			return false
		default:
			fmt.Println("Unknown response. Respond [Y]es / [N]o.")
		}
	}
}

func (u *unpacker) attemptUnpack() error {
	fmt.Println("Preparing to unpack Dark Souls for modding...")
	fmt.Println("Examining current directory...")

	alreadyUnpacked, err := u.checkForUnpackedDirs()
	if err != nil {
		return err
	}

	fmt.Print(" - Examining Dark Souls executable...")
	exe, err := dscheck.ClassifyExe(u.fs)
	if err != nil {
		return err
	}
	switch exe.Status {
	case dscheck.StatusExpected, dscheck.StatusExpectedDebug, dscheck.StatusUnpacked, dscheck.StatusUnpackedDebug:
		fmt.Println("Done.")
	case dscheck.StatusUnexpected:
		fmt.Println()
		if !u.confirm("Executable does not match expected checksum. Continue anyway?") {
			return errDeclined
		}
	case dscheck.StatusGFWL:
		fmt.Println()
		if !u.confirm("Detected executable DATA.exe (GFWL version) is not supported. Continue anyway?") {
			return errDeclined
		}
	default:
		return fmt.Errorf("%s was not found; check the current directory and try again", dscheck.ExeFilename)
	}

	fmt.Println(" - Examining data archives...")
	arc, err := dscheck.ClassifyArchives(u.fs)
	if err != nil {
		return err
	}
	if len(arc.Missing) > 0 {
		if len(arc.Existing) == 0 && exe.Status == dscheck.StatusUnpacked &&
			len(alreadyUnpacked) == len(ds.UnpackedDirs) && u.backupDirExists() {
			fmt.Println("Unpacking appears to have been previously completed. Exiting.")
			return nil
		}
		fmt.Println("The following archive files are missing. Check the current directory and try again.")
		for _, f := range arc.Missing {
			fmt.Println(" * " + f)
		}
		return errMissingArchives
	}
	matching := make(map[string]bool, len(arc.HasMatchingChecksum))
	for _, f := range arc.HasMatchingChecksum {
		matching[f] = true
	}
	for _, f := range arc.Existing {
		if !matching[f] {
			if !u.confirm(fmt.Sprintf("Archive file %q does not match expected checksum. Continue anyway?", f)) {
				return errDeclined
			}
		}
	}

	fmt.Println(" - Examining directory contents...")
	if len(alreadyUnpacked) > 0 {
		fmt.Println("The following destination directories already exist and will be deleted before unpacking begins.")
		for _, d := range alreadyUnpacked {
			fmt.Println(" * " + d)
		}
		if !u.confirm("The current contents of these directories WILL be lost. Continue anyway?") {
			return errDeclined
		}
	}

	tempRoot := filepath.Join(".", ds.TempDirName)
	tempDirExists, err := afero.DirExists(u.fs, tempRoot)
	if err != nil {
		return err
	}
	if tempDirExists {
		fmt.Printf("The temp directory %q already exists and will be deleted before unpacking begins.\n", ds.TempDirName)
		if !u.confirm("The current contents of this directory WILL be lost. Continue anyway?") {
			return errDeclined
		}
	}

	shouldBackup := true
	if u.backupDirExists() {
		if u.confirm(fmt.Sprintf("Backup directory %q already exists. Backed-up copies of current files will not be created. Continue anyway?", backupDirName)) {
			shouldBackup = false
		} else {
			return errDeclined
		}
	}

	removeTempOnSuccess := u.confirm("Remove the temp directory once unpacking completes successfully?")
	fmt.Println("Done.")

	if shouldBackup {
		fmt.Println("Making backups...")
		if err := u.makeBackups(append([]string{exe.Filename}, arc.Existing...)); err != nil {
			return fmt.Errorf("making backups: %w", err)
		}
		fmt.Println("Done.")
	} else {
		fmt.Println("Skipping backing-up important files.")
	}

	if exe.Status == dscheck.StatusUnpacked || exe.Status == dscheck.StatusUnpackedDebug {
		fmt.Println("Skipping modifying .exe file (checksum matches an already-patched .exe)")
	} else {
		fmt.Println("Modifying .exe file...")
		kind := dsexe.BuildKindFor(exe.Status)
		if _, err := dsexe.PatchFile(u.fs, exe.Filename, kind); err != nil {
			return fmt.Errorf("patching %s: %w", exe.Filename, err)
		}
		fmt.Print("Done. Verifying modifications...")
		reclassified, err := dscheck.ClassifyExe(u.fs)
		if err != nil {
			return err
		}
		wantStatus := dscheck.StatusUnpacked
		if exe.Status == dscheck.StatusExpectedDebug {
			wantStatus = dscheck.StatusUnpackedDebug
		}
		if reclassified.Status == wantStatus {
			fmt.Println("Done.")
		} else {
			fmt.Println()
			if !u.confirm("Modified .exe does not match expected checksum. Continue anyway?") {
				return errDeclined
			}
		}
	}

	if len(alreadyUnpacked) > 0 {
		fmt.Print("Deleting existing unpacked archive directories...")
		for _, d := range alreadyUnpacked {
			if err := u.fs.RemoveAll(d); err != nil {
				return err
			}
		}
		fmt.Println("Done.")
	}

	if tempDirExists {
		fmt.Print("Deleting existing temp directory...")
		if err := u.fs.RemoveAll(tempRoot); err != nil {
			return err
		}
		fmt.Println("Done.")
	}

	fmt.Println("Unpacking archives...")
	if err := u.unpackArchives(); err != nil {
		return fmt.Errorf("unpacking archives: %w", err)
	}
	fmt.Println("Done.")

	if removeTempOnSuccess {
		fmt.Print("Removing temp directory...")
		if err := u.fs.RemoveAll(tempRoot); err != nil {
			return err
		}
		fmt.Println("Done.")
	}

	fmt.Print("Removing archives...")
	if err := u.removeArchives(); err != nil {
		return err
	}
	fmt.Println("Done.")

	fmt.Println(`Unpacking completed. \[T]/`)
	return nil
}

var (
	errDeclined        = errors.New("user declined to continue")
	errMissingArchives = errors.New("one or more archive files are missing")
)

func (u *unpacker) checkForUnpackedDirs() ([]string, error) {
	var present []string
	for _, d := range ds.UnpackedDirs {
		ok, err := afero.DirExists(u.fs, d)
		if err != nil {
			return nil, err
		}
		if ok {
			present = append(present, d)
		}
	}
	return present, nil
}

func (u *unpacker) backupDirExists() bool {
	ok, _ := afero.DirExists(u.fs, backupDirName)
	return ok
}

func (u *unpacker) makeBackups(files []string) error {
	if err := u.fs.RemoveAll(backupDirName); err != nil {
		return err
	}
	if err := u.fs.MkdirAll(backupDirName, 0o755); err != nil {
		return err
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		fmt.Printf(" - Backing up file %q...", f)
		content, err := afero.ReadFile(u.fs, f)
		if err != nil {
			return err
		}
		if err := afero.WriteFile(u.fs, filepath.Join(backupDirName, filepath.Base(f)), content, 0o644); err != nil {
			return err
		}
		fmt.Println("Done.")
	}
	return nil
}

func (u *unpacker) unpackArchives() error {
	names, err := ds.NewDefaultNameHashTable()
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("unpacking"),
		progressbar.OptionSetWriter(os.Stdout),
		progressbar.OptionClearOnFinish(),
	)

	d := ds.NewDispatcher(u.fs, names, u.log)
	d.OnRecord = func(archive string, rec ds.ArchiveRecord) {
		bar.Add(1)
		u.log.WithFields(logrus.Fields{"archive": archive, "record": rec.Name}).Debug("wrote record")
	}

	root := "."
	tempRoot := filepath.Join(root, ds.TempDirName)

	for _, dir := range ds.UnpackedDirs {
		if err := u.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	leaves, err := d.UnpackOuterArchives(root, root)
	if err != nil {
		return err
	}
	sort.Strings(leaves)

	if err := d.RecurseBND3(leaves, root, tempRoot); err != nil {
		return err
	}
	if err := d.InjectCustomFile(tempRoot); err != nil {
		return err
	}
	if err := d.WriteManifest(tempRoot); err != nil {
		return err
	}
	if err := d.PairAndExtract(root); err != nil {
		return err
	}

	return bar.Finish()
}

func (u *unpacker) removeArchives() error {
	for i := 0; i < 4; i++ {
		for _, name := range []string{
			fmt.Sprintf("dvdbnd%d.bhd5", i),
			fmt.Sprintf("dvdbnd%d.bdt", i),
		} {
			if err := u.fs.Remove(name); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}
