package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec <command>",
	Short: "Send one raw command and print the reply",
	Long: `Send a single command line exactly as given, for example "P2220" or
"G0 X100 Y0 Z50 F1000", and print the reply payload.`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	a, _, err := openArm(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	payload, err := a.Link().Do(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(payload)
	return nil
}
