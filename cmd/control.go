package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/control"
)

var controlCompany string

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Signal a running extraction via sentinel files",
}

func controlStore() (*control.FileStore, error) {
	return control.NewFileStore(cfg.Paths.ControlDir(controlCompany))
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the run after the current page",
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := controlStore()
		if err != nil {
			return err
		}
		if err := cs.Drop(control.SignalPause); err != nil {
			return err
		}
		fmt.Printf("pause requested for %s\n", controlCompany)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := controlStore()
		if err != nil {
			return err
		}
		if err := cs.Drop(control.SignalResume); err != nil {
			return err
		}
		fmt.Printf("resume requested for %s\n", controlCompany)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the run cleanly after the current page",
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := controlStore()
		if err != nil {
			return err
		}
		if err := cs.Drop(control.SignalStop); err != nil {
			return err
		}
		fmt.Printf("stop requested for %s\n", controlCompany)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the last status snapshot the run emitted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := controlStore()
		if err != nil {
			return err
		}
		st, err := cs.ReadStatus()
		if err != nil {
			return err
		}
		if st == nil {
			fmt.Printf("no status available for %s\n", controlCompany)
			return nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clean-signals",
	Short: "Remove all pending control signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := controlStore()
		if err != nil {
			return err
		}
		if err := cs.Clear(); err != nil {
			return err
		}
		fmt.Printf("control signals cleared for %s\n", controlCompany)
		return nil
	},
}

func init() {
	controlCmd.PersistentFlags().StringVar(&controlCompany, "company", "aire", "company whose run to control (aire or afinia)")
	controlCmd.AddCommand(pauseCmd, resumeCmd, stopCmd, statusCmd, clearCmd)
	rootCmd.AddCommand(controlCmd)
}
