package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newConfigCmd prints the effective configuration as YAML
func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, config file, environment and flags
have been merged. The output is valid input for --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if a.cfgPath != "" {
				fmt.Fprintf(w, "# from %s\n", a.cfgPath)
			}
			_, err = w.Write(out)
			return err
		},
	}
}
