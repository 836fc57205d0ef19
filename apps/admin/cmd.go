package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"syscall"

	"golang.org/x/term"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	client *http.Client
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  checkbootstrap [-addr ADDR] - check whether the first-admin setup is still open")
	fmt.Println("  bootstrap -name NAME -email EMAIL [-addr ADDR] - create the first admin account")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	checkCmd := flag.NewFlagSet("checkbootstrap", flag.ExitOnError)
	checkAddr := checkCmd.String("addr", "http://localhost:8080", "The API base address.")

	bootstrapCmd := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	bootstrapName := bootstrapCmd.String("name", "", "The admin's full name.")
	bootstrapEmail := bootstrapCmd.String("email", "", "The admin's email. The password and bootstrap key will be prompted next.")
	bootstrapAddr := bootstrapCmd.String("addr", "http://localhost:8080", "The API base address.")

	switch args[1] {
	case "checkbootstrap":
		if err := checkCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.checkBootstrap(*checkAddr)
	case "bootstrap":
		if err := bootstrapCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *bootstrapName == "" || *bootstrapEmail == "" {
			bootstrapCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			bootstrapCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter bootstrap key:")
		key, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		return cli.bootstrap(*bootstrapAddr, *bootstrapName, *bootstrapEmail, string(pwd), string(key))
	default:
		cli.printUsage()
		return errHelp
	}
}
