package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/connectingdocs/match-engine/internal/catalog"
	"github.com/connectingdocs/match-engine/internal/model"
	"github.com/connectingdocs/match-engine/internal/store"
)

var catalogSheet string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the stored protocol catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import protocols from a YAML catalog or XLSX export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		protocols, solutions, err := loadCatalogFile(args[0], catalog.XLSXOptions{SheetName: catalogSheet})
		if err != nil {
			return err
		}

		st, err := openStore(ctx, "catalog-import")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := saveCatalog(ctx, st, protocols, solutions)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d protocols and %d solutions from %s\n", n, len(solutions), args[0])
		return nil
	},
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the protocol catalog from Airtable into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "catalog-sync")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		protocols, err := catalog.NewAirtableProvider(initAirtable(), cfg.Airtable.ProtocolTable).Fetch(ctx)
		if err != nil {
			return err
		}
		solutions := catalog.Solutions(protocols)

		n, err := saveCatalog(ctx, st, protocols, solutions)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d protocols and %d solutions from airtable\n", n, len(solutions))
		return nil
	},
}

func init() {
	catalogImportCmd.Flags().StringVar(&catalogSheet, "sheet", "", "worksheet name for XLSX imports (default first sheet)")
	catalogCmd.AddCommand(catalogImportCmd, catalogSyncCmd)
	rootCmd.AddCommand(catalogCmd)
}

// loadCatalogFile reads protocols by file extension. Solutions listed in a
// YAML catalog are merged with the ones referenced by protocol signatures.
func loadCatalogFile(path string, opts catalog.XLSXOptions) ([]model.Protocol, []model.Solution, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := catalog.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		return f.Protocols, mergeSolutions(f.Solutions, catalog.Solutions(f.Protocols)), nil
	case ".xlsx":
		protocols, err := catalog.LoadXLSX(path, opts)
		if err != nil {
			return nil, nil, err
		}
		return protocols, catalog.Solutions(protocols), nil
	default:
		return nil, nil, eris.Errorf("catalog: unsupported file type %q", filepath.Ext(path))
	}
}

func mergeSolutions(explicit, derived []model.Solution) []model.Solution {
	seen := make(map[string]bool, len(explicit))
	out := make([]model.Solution, 0, len(explicit)+len(derived))
	for _, s := range append(explicit, derived...) {
		if s.ID == "" || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

func saveCatalog(ctx context.Context, st store.Store, protocols []model.Protocol, solutions []model.Solution) (int, error) {
	n, err := st.UpsertProtocols(ctx, protocols)
	if err != nil {
		return 0, eris.Wrap(err, "catalog: upsert protocols")
	}
	for _, s := range solutions {
		if err := st.UpsertSolution(ctx, s); err != nil {
			return n, eris.Wrapf(err, "catalog: upsert solution %s", s.ID)
		}
	}
	zap.L().Info("catalog saved",
		zap.Int("protocols", n),
		zap.Int("solutions", len(solutions)),
	)
	return n, nil
}
