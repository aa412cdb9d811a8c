package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modda-mods/modda/internal/driver"
	"github.com/modda-mods/modda/internal/manifest"
	"github.com/modda-mods/modda/internal/modderr"
)

var installManifestPath string
var installPreFetch bool
var installConcurrency int

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Run the installation pipeline for a manifest",
	Long: `Fetches, extracts, mutates, stages and installs every module in the
manifest, in listed order. A module whose install directory already
contains its .tp2 is skipped. The run halts at the first module or
component that fails, leaving already-installed components in place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if installManifestPath == "" {
			return modderr.New(modderr.KindManifest, "", fmt.Errorf("--manifest is required"))
		}

		logger := newLogger()

		m, err := manifest.Load(installManifestPath)
		if err != nil {
			return modderr.New(modderr.KindManifest, "", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		creds, err := loadCredentials(logger)
		if err != nil {
			return err
		}

		registry, _, err := newFetcherRegistry(cfg, creds)
		if err != nil {
			return err
		}

		weiduPath, err := discoverWeidu(cfg)
		if err != nil {
			return err
		}

		if installConcurrency > 0 {
			cfg.Concurrency = installConcurrency
		}

		d := &driver.Driver{
			Config:    cfg,
			Manifest:  m,
			Registry:  registry,
			WeiduPath: weiduPath,
			GameDir:   gameDir,
			Logger:    logger,
			PreFetch:  installPreFetch,
		}

		results, err := d.Run(cmd.Context())
		for _, r := range results {
			if r.Skipped {
				logger.Infof("module %s: already staged, skipped", r.Name)
				continue
			}
			logger.Infof("module %s: %s", r.Name, r.Outcome)
		}
		return err
	},
}

func init() {
	installCmd.Flags().StringVar(&installManifestPath, "manifest", "", "path to the manifest file")
	installCmd.Flags().BoolVar(&installPreFetch, "pre-fetch", false, "fetch and extract all modules concurrently before installing any of them")
	installCmd.Flags().IntVar(&installConcurrency, "concurrency", 0, "max concurrent pre-fetch workers (default from config, else 4)")
	rootCmd.AddCommand(installCmd)
}
