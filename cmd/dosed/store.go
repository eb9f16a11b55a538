package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itohio/gopowder/pkg/store"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect or clear the persisted calibration",
}

var storeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted calibration slots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(func(e *store.EEPROM) error {
			slots := []struct {
				name string
				slot store.Slot
			}{
				{"calibration_factor", store.CalibrationFactor},
				{"zero_offset", store.ZeroOffset},
				{"channel1_offset", store.Channel1Offset},
			}
			for _, s := range slots {
				v, set, err := e.Float32(s.slot)
				if err != nil {
					return err
				}
				if !set {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: unset\n", s.name)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %.4f\n", s.name, v)
			}
			return nil
		})
	},
}

var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Zero the whole store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(func(e *store.EEPROM) error {
			if err := e.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Store cleared")
			return nil
		})
	},
}

func init() {
	storeCmd.AddCommand(storeShowCmd, storeClearCmd)
}

func withStore(fn func(*store.EEPROM) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := store.OpenFile(cfg.Store.Path, cfg.Store.Size)
	if err != nil {
		return err
	}
	if err := fn(store.New(f)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
