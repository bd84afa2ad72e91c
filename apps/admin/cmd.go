package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/user"
	"github.com/trezcool/ratiba/core/window"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	conf    *core.Config
	usrRepo user.Repository
	winSvc  *window.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate up|down|redo|status|version - run database migrations")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-admin] - update or create a user. The password will be prompted next.")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  addwindow -phase PHASE -track TRACK [-cycle CYCLE] -start RFC3339 -end RFC3339 [-unenforced] - schedule a phase window")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant all roles.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	addWindowCmd := flag.NewFlagSet("addwindow", flag.ExitOnError)
	addWindowPhase := addWindowCmd.String("phase", "", "The phase kind (proposal|application|submission|assessment|grade_release).")
	addWindowTrack := addWindowCmd.String("track", "", "The track (IDP|UROP|CAPSTONE).")
	addWindowCycle := addWindowCmd.String("cycle", "", "The assessment cycle (CLA-1|CLA-2|CLA-3|External); submission/assessment only.")
	addWindowStart := addWindowCmd.String("start", "", "The window start instant, RFC3339.")
	addWindowEnd := addWindowCmd.String("end", "", "The window end instant, RFC3339.")
	addWindowUnenforced := addWindowCmd.Bool("unenforced", false, "Record the window for display only; impose no access restriction.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.addUser(*addUserUname, *addUserEmail, pwd, *addUserAdmin)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	case "addwindow":
		if err := addWindowCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addWindowPhase == "" || *addWindowTrack == "" || *addWindowStart == "" || *addWindowEnd == "" {
			addWindowCmd.Usage()
			return errHelp
		}
		return cli.addWindow(*addWindowPhase, *addWindowTrack, *addWindowCycle, *addWindowStart, *addWindowEnd, !*addWindowUnenforced)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errHelp
	}
	return string(pwd), nil
}
