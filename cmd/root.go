package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vv",
		Short:         "VoiceVault (vv): inspect and maintain voice-record save slots",
		Long:          "vv (VoiceVault) inspects the per-slot voice-record store: list saved slots, look inside one, or delete a slot including its backups.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newSlotCmd(app),
	)

	return rootCmd
}
