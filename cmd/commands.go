package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/e14n/pump2status/worker"
)

func newUpdateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Refresh the following edges of every foreign account once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(v)
			if err != nil {
				return err
			}
			defer a.close()

			w := worker.NewWorker(a.store, a.bridge, a.config.Worker, a.logger, nil)
			report, err := w.Updater.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "accounts=%d added=%d deleted=%d broken=%d failed=%d\n",
				report.Accounts, report.Added, report.Deleted, report.Broken, report.Failed)
			return nil
		},
	}
}

func newForwardCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "forward",
		Short: "Forward new public notes of every local account once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(v)
			if err != nil {
				return err
			}
			defer a.close()

			w := worker.NewWorker(a.store, a.bridge, a.config.Worker, a.logger, nil)
			report, err := w.Forwarder.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users=%d polled=%d delivered=%d failed=%d\n",
				report.Users, report.Polled, report.Delivered, report.Failed)
			return nil
		},
	}
}

func newAddHostCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "addhost <hostname>",
		Short: "Discover and register a StatusNet host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(v)
			if err != nil {
				return err
			}
			defer a.close()

			host, err := a.registry.EnsureHost(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(host, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
