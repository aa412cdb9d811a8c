package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/modda-mods/modda/internal/cache"
	"github.com/modda-mods/modda/internal/config"
	"github.com/modda-mods/modda/internal/logging"
	"github.com/modda-mods/modda/internal/modderr"
	"github.com/modda-mods/modda/internal/source"
	"github.com/modda-mods/modda/internal/weidu"
)

// loadConfig discovers every modda.yml layer and merges them: the project
// layer (./modda.yml, or --config's override) wins on a conflicting scalar
// key, but map-valued fields like Extractors merge key-wise across layers
// rather than one layer replacing the other outright. A fresh checkout with
// no config file anywhere is a normal state, not a configuration error.
func loadConfig() (*config.Config, error) {
	merged := &config.Config{}
	found := false
	for _, layer := range config.DiscoverConfigPaths(configPath) {
		raw, err := config.LoadRaw(layer.Path)
		if err != nil {
			// An explicit --config override must exist and parse; a
			// discovered layer missing entirely is normal and skipped.
			if configPath == "" && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, modderr.New(modderr.KindConfiguration, "", fmt.Errorf("loading config %s: %w", layer.Path, err))
		}
		found = true
		config.Merge(merged, raw)
	}
	if !found {
		merged = config.Default()
	}

	config.ApplyDefaults(merged)
	if errs := config.Validate(merged); len(errs) > 0 {
		return nil, modderr.New(modderr.KindConfiguration, "", &config.ValidationError{Errors: errs})
	}
	return merged, nil
}

func loadCredentials(logger *logging.Logger) (*config.Credentials, error) {
	for _, layer := range config.DiscoverCredentialsPaths() {
		creds, warning, err := config.LoadCredentials(layer.Path)
		if err != nil {
			return nil, modderr.New(modderr.KindConfiguration, "", err)
		}
		if warning != "" {
			logger.Warn(warning)
		}
		if creds != nil {
			return creds, nil
		}
	}
	return nil, nil
}

func newLogger() *logging.Logger {
	return logging.New(verbose, quiet)
}

func newHTTPClient(cfg *config.Config) *http.Client {
	connect := time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond
	if connect <= 0 {
		connect = 30 * time.Second
	}
	idle := time.Duration(cfg.IdleTimeoutMS) * time.Millisecond
	if idle <= 0 {
		idle = 300 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connect}).DialContext
	transport.IdleConnTimeout = idle
	return &http.Client{Transport: transport}
}

func newFetcherRegistry(cfg *config.Config, creds *config.Credentials) (*source.Registry, *cache.Cache, error) {
	c, err := cache.New(cfg.ArchiveCache)
	if err != nil {
		return nil, nil, modderr.New(modderr.KindConfiguration, "", err)
	}
	return source.NewRegistry(c, cfg, creds, newHTTPClient(cfg)), c, nil
}

func discoverWeidu(cfg *config.Config) (string, error) {
	path, err := weidu.Discover(cfg.WeiduPath, gameDir)
	if err != nil {
		return "", modderr.New(modderr.KindConfiguration, "", err)
	}
	return path, nil
}
