// Package main point d'entrée de L'Assistant Com' : serveur HTTP et import hors ligne.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/config"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/importer"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/server"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/util"
)

var (
	configPath string
	dataDir    string

	servePort int
	serveDev  bool
	serveOpen bool

	importOwner string
	importDry   bool

	exportOwner string
	exportYear  int
	exportOut   string
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "assistantcom",
		Short:        "L'Assistant Com' : import et suivi des statistiques mensuelles",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "fichier config.toml (défaut : à côté de l'exécutable)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "répertoire de données (remplace la configuration)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newExportCmd())
	return rootCmd
}

func loadConfig() (*config.AppConfig, config.LoadConfigInfo, error) {
	var (
		cfg  *config.AppConfig
		info config.LoadConfigInfo
		err  error
	)
	if configPath != "" {
		config.LoadDotEnv(filepath.Dir(configPath))
		cfg, info, err = config.LoadFrom(configPath)
	} else {
		cfg, info, err = config.LoadConfigWithInfo()
	}
	if err != nil {
		return nil, info, fmt.Errorf("failed to load config: %w", err)
	}
	if dataDir != "" {
		cfg.Data.DataDir = dataDir
	}
	return cfg, info, nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Démarre l'API HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().IntVar(&servePort, "port", 0, "port d'écoute (config.toml prioritaire si port y est défini)")
	cmd.Flags().BoolVar(&serveDev, "dev", false, "mode développement")
	cmd.Flags().BoolVar(&serveOpen, "open", false, "ouvre le navigateur sur /api/status")
	return cmd
}

func runServeCmd(_ *cobra.Command, _ []string) error {
	fmt.Println("==========================================")
	fmt.Println("  L'Assistant Com' - statistiques mensuelles")
	fmt.Println("==========================================")

	cfg, info, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 && !info.PortSpecified {
		cfg.Server.Port = servePort
	}
	if serveDev {
		cfg.Server.DevMode = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	fmt.Printf("Répertoire de données : %s\n", dir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := server.Build(ctx, cfg, dir)
	if err != nil {
		return err
	}
	srv := server.NewServer(cfg, components)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	url := fmt.Sprintf("http://localhost:%d/api/status", cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Écoute sur le port %d ...\n", cfg.Server.Port)
		errCh <- srv.Run(addr)
	}()

	if serveOpen {
		if err := util.OpenBrowserWithFallback(url); err != nil {
			fmt.Printf("Impossible d'ouvrir le navigateur, ouvre %s\n", url)
		}
	}

	fmt.Println("\nCtrl+C pour arrêter...")

	select {
	case err := <-errCh:
		if err != nil {
			_ = components.Close()
			return fmt.Errorf("server stopped: %w", err)
		}
	case <-ctx.Done():
	}

	fmt.Println("\nArrêt en cours...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("arrêt incomplet : %v", err)
	}
	return nil
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <fichier>",
		Short: "Importe un tableur local (analyse, aperçu, confirmation)",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
	cmd.Flags().StringVar(&importOwner, "owner", "", "identifiant du propriétaire des statistiques")
	cmd.Flags().BoolVar(&importDry, "dry-run", false, "affiche l'aperçu sans rien enregistrer")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	dir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	ctx := cmd.Context()
	components, err := server.Build(ctx, cfg, dir)
	if err != nil {
		return err
	}
	defer components.Close()

	sess, err := components.Imports.Analyze(ctx, importer.AnalyzeRequest{
		OwnerID:  importOwner,
		FileName: filepath.Base(path),
		Data:     data,
	})
	if err != nil {
		if sess != nil && sess.LastError != "" {
			return fmt.Errorf("%s: %w", sess.LastError, err)
		}
		return err
	}
	fmt.Printf("Feuille : %s (correspondance %s, confiance %s)\n", sess.Mapping.SheetName, sess.MappingSource, sess.Mapping.Confidence)

	sess, err = components.Imports.Preview(ctx, importOwner, sess.ID)
	if err != nil {
		return err
	}
	printPreview(sess)

	if importDry {
		return components.Imports.Discard(ctx, importOwner, sess.ID)
	}

	sess, err = components.Imports.Confirm(ctx, importOwner, sess.ID, nil)
	if err != nil {
		return err
	}
	fmt.Printf("Importé : %d mois", sess.ImportedCount)
	if sess.FailedCount > 0 {
		fmt.Printf(", %d en échec", sess.FailedCount)
	}
	fmt.Println()
	return nil
}

func printPreview(sess *model.ImportSession) {
	fmt.Printf("%d mois à importer\n", len(sess.Rows))
	for _, c := range sess.Corrections {
		fmt.Printf("  corrigé ligne %d : %s\n", c.SourceLine, c.Label)
	}
	for _, s := range sess.Skipped {
		fmt.Printf("  ignoré ligne %d : %q\n", s.Line, s.RawValue)
	}
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Écrit les statistiques d'une année dans un classeur xlsx",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportOwner, "owner", "", "identifiant du propriétaire des statistiques")
	cmd.Flags().IntVar(&exportYear, "year", time.Now().Year(), "année exportée")
	cmd.Flags().StringVarP(&exportOut, "output", "o", "", "fichier de sortie (défaut : statistiques-<année>.xlsx)")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	dir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	components, err := server.Build(cmd.Context(), cfg, dir)
	if err != nil {
		return err
	}
	defer components.Close()

	f, err := components.Exporter.Export(cmd.Context(), exportOwner, exportYear)
	if err != nil {
		return err
	}
	defer f.Close()

	out := exportOut
	if out == "" {
		out = fmt.Sprintf("statistiques-%d.xlsx", exportYear)
	}
	if err := f.SaveAs(out); err != nil {
		return fmt.Errorf("failed to save %s: %w", out, err)
	}
	fmt.Printf("Classeur écrit : %s\n", out)
	return nil
}
