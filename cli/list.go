package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli"
)

func ListCommand() cli.Command {
	return cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "list stored reports, oldest first",
		Action:  list,
	}
}

func ShowCommand() cli.Command {
	return cli.Command{
		Name:      "show",
		Usage:     "print a stored report",
		ArgsUsage: "<id>",
		Action:    show,
	}
}

func list(c *cli.Context) error {
	s, err := openStore(c)
	if err != nil {
		return err
	}

	reports, err := s.All()
	if err != nil {
		return err
	}
	for _, r := range reports {
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\t%s\n",
			r.Id,
			r.DateAdded.Format(time.RFC3339),
			r.CrashType,
			r.Reason)
	}
	return nil
}

func show(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.NewExitError("report id is required", 1)
	}

	s, err := openStore(c)
	if err != nil {
		return err
	}

	r, err := s.Load(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("Can't load report: %v", err), 1)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}
