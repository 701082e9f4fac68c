package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var policyNodes int

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Print the sizing policy, or the tier chosen for --nodes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var doc any = cfg.Policy
		if cmd.Flags().Changed("nodes") {
			if policyNodes < 0 {
				return fmt.Errorf("--nodes must not be negative")
			}
			doc = cfg.Policy.Select(policyNodes)
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	policyCmd.Flags().IntVarP(&policyNodes, "nodes", "n", 0, "Scene node count to select a tier for")
	rootCmd.AddCommand(policyCmd)
}
