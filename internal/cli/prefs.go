package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vietddude/commune/internal/core/config"
	"github.com/vietddude/commune/internal/infra/prefs"
)

var prefsAccount string

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Read and write local preferences",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one preference, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrefs(cmd.Context(), func(ctx context.Context, s *prefs.Store, account string) error {
			if len(args) == 1 {
				v, err := s.Get(ctx, account, args[0])
				if err != nil {
					return err
				}
				fmt.Println(v)
				return nil
			}
			all, err := s.All(ctx, account)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Key", "Value"})
			for _, k := range keys {
				tw.AppendRow(table.Row{k, all[k]})
			}
			tw.Render()
			return nil
		})
	},
}

var prefsSetCmd = &cobra.Command{
	Use:     "set <key> [value]",
	Short:   "Set a preference; omit the value to clear it",
	Example: `  commune prefs set language vi
  commune prefs set emoji:chore-12 🧹`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := ""
		if len(args) == 2 {
			value = args[1]
		}
		return withPrefs(cmd.Context(), func(ctx context.Context, s *prefs.Store, account string) error {
			return s.Set(ctx, account, args[0], value)
		})
	},
}

func init() {
	prefsCmd.PersistentFlags().StringVar(&prefsAccount, "account", "", "account address (defaults to the configured key's address)")
	prefsCmd.AddCommand(prefsGetCmd, prefsSetCmd)
	rootCmd.AddCommand(prefsCmd)
}

func withPrefs(ctx context.Context, fn func(context.Context, *prefs.Store, string) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	account, err := resolveAccount(prefsAccount, cfg)
	if err != nil {
		return err
	}
	s, err := prefs.Open(ctx, cfg.Preferences.Path)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s, account)
}

func resolveAccount(flag string, cfg *config.AppConfig) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if cfg.Session.PrivateKey == "" {
		return "", errors.New("no --account given and no session.private_key configured")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Session.PrivateKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid session.private_key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
