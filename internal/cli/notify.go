package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNotifyCmd(env func() *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send reminders and manage device tokens",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Send this hour's reminders once",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				report, err := env().dispatcher().RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "hour %02d: %d due, %d skipped, %d notified\n",
					report.Hour, report.Due, report.Skipped, len(report.Deliveries))
				for _, d := range report.Deliveries {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d/%d devices, %d pruned\n",
						d.UserID, d.SuccessCount, d.DeviceCount, d.Pruned)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "test",
			Short: "Send a test notification to your devices",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				e := env()
				d, err := e.dispatcher().SendTest(cmd.Context(), e.cfg.UserID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent to %d of %d devices\n", d.SuccessCount, d.DeviceCount)
				return nil
			},
		},
		&cobra.Command{
			Use:   "register TOKEN",
			Short: "Register a device token for reminders",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e := env()
				if err := e.dispatcher().Register(cmd.Context(), e.cfg.UserID, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "device registered")
				return nil
			},
		},
		&cobra.Command{
			Use:       "permission granted|denied|default",
			Short:     "Record whether reminders are allowed",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"granted", "denied", "default"},
			RunE: func(cmd *cobra.Command, args []string) error {
				return env().dispatcher().SetPermission(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}
