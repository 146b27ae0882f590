package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/obiente/translate/livewhisper/internal/whisper"
)

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage whisper.cpp model files",
	}
	cmd.AddCommand(modelsListCmd())
	cmd.AddCommand(modelsDownloadCmd())
	return cmd
}

func modelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known model variants and whether they are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := whisper.Store{Dir: cfg.Model.Dir}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VARIANT\tSIZE\tLANGUAGES\tINSTALLED")
			for _, m := range whisper.Variants() {
				langs := "english"
				if m.Multilingual {
					langs = "multilingual"
				}
				installed := ""
				if store.Installed(m.Variant) {
					installed = "yes"
				}
				if m.Variant == cfg.Model.Variant {
					installed += " (configured)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Variant, m.Size, langs, installed)
			}
			return w.Flush()
		},
	}
}

func modelsDownloadCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "download [variant]",
		Short: "Download a model variant (default: the configured one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			variant := cfg.Model.Variant
			if len(args) == 1 {
				variant = args[0]
			}
			if _, ok := whisper.Lookup(variant); !ok {
				return fmt.Errorf("unknown model variant %q", variant)
			}

			store := whisper.Store{Dir: cfg.Model.Dir}
			path, _ := store.Path(variant)
			if store.Installed(variant) && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already installed at %s\n", variant, path)
				return nil
			}
			if err := store.Download(cmd.Context(), variant); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "downloaded %s to %s\n", variant, path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "download even if the file already exists")
	return cmd
}
