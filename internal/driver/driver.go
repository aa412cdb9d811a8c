// Package driver orchestrates the per-module pipeline — fetch, extract,
// mutate, stage, install — that turns one manifest into an installed game
// directory, halting on the first module or component that fails.
package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/modda-mods/modda/internal/config"
	"github.com/modda-mods/modda/internal/extract"
	"github.com/modda-mods/modda/internal/logging"
	"github.com/modda-mods/modda/internal/manifest"
	"github.com/modda-mods/modda/internal/modderr"
	"github.com/modda-mods/modda/internal/mutate"
	"github.com/modda-mods/modda/internal/sandbox"
	"github.com/modda-mods/modda/internal/source"
	"github.com/modda-mods/modda/internal/stage"
	"github.com/modda-mods/modda/internal/weidu"
)

// Driver runs a manifest's modules, in order, against one game directory.
// When PreFetch is set, fetch and extract for every not-yet-staged module
// run concurrently (bounded by Config.Concurrency) before the strictly
// serial install loop begins; the default is fetch-then-install serially,
// one module at a time.
type Driver struct {
	Config    *config.Config
	Manifest  *manifest.Manifest
	Registry  *source.Registry
	WeiduPath string
	GameDir   string
	Logger    *logging.Logger
	PreFetch  bool

	mu          sync.Mutex
	prefetched  map[string]string
	prefetchErr map[string]error
}

// ModuleResult records what happened to one module, returned alongside an
// error so callers such as `install` can report partial progress.
type ModuleResult struct {
	Name    string
	Skipped bool
	Outcome weidu.Outcome
}

// lockFileName is the advisory cross-run guard over the game directory: an
// O_EXCL-created file, so two concurrent `modda install` invocations never
// both believe they own the directory, plus the owning PID for diagnosing a
// lock left behind by a crashed run.
const lockFileName = ".modda.lock"

// acquireLock creates the game directory's advisory lock file, returning a
// release func the caller defers. Creation is O_EXCL so a pre-existing lock
// fails loudly rather than being silently clobbered; the file's content is
// the holding process's PID, for a human to decide whether it's stale.
func (d *Driver) acquireLock() (func(), error) {
	path := filepath.Join(d.GameDir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			holder, _ := os.ReadFile(path)
			return nil, fmt.Errorf("%s already exists (pid %s); remove it once you've confirmed no other modda run owns this game directory", path, strings.TrimSpace(string(holder)))
		}
		return nil, fmt.Errorf("creating lock file %s: %w", path, err)
	}
	_, writeErr := fmt.Fprintf(f, "%d\n", os.Getpid())
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if writeErr != nil {
			return nil, fmt.Errorf("writing lock file %s: %w", path, writeErr)
		}
		return nil, fmt.Errorf("closing lock file %s: %w", path, closeErr)
	}
	return func() { _ = os.Remove(path) }, nil
}

// Run installs every module in the manifest in order, stopping at the first
// failure. It returns the results for modules that were attempted.
func (d *Driver) Run(ctx context.Context) ([]ModuleResult, error) {
	release, err := d.acquireLock()
	if err != nil {
		return nil, modderr.New(modderr.KindConfiguration, "", err)
	}
	defer release()

	if err := weidu.CheckConfLangDir(d.GameDir, d.Manifest.Global.LangDir); err != nil {
		return nil, modderr.New(modderr.KindConfiguration, "", err)
	}

	if err := d.sweepStaleStaging(); err != nil {
		return nil, modderr.New(modderr.KindExtraction, "", fmt.Errorf("sweeping stale staging directories: %w", err))
	}

	if d.PreFetch {
		if err := d.preFetchAll(ctx); err != nil {
			return nil, err
		}
	}

	var results []ModuleResult
	for _, mod := range d.Manifest.Modules {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		res, err := d.runModule(ctx, mod)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// sweepStaleStaging removes any "modda-stage-*" directory left behind under
// the extract root by a run that was interrupted before a module's staging
// directory could be promoted or released. A module's own final root
// (extractRoot/<canonicalName>) is left alone here — AlreadyStaged governs
// whether that module still needs work, not this sweep.
func (d *Driver) sweepStaleStaging() error {
	entries, err := os.ReadDir(d.Config.ExtractLocation)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "modda-stage-") {
			if err := sandbox.SafeRemoveAll(d.Config.ExtractLocation, e.Name()); err != nil {
				return err
			}
		}
	}
	return nil
}

// preFetchAll runs fetchAndExtract for every not-yet-staged module
// concurrently, limited to Config.Concurrency workers, and stashes each
// module's resolved root (or error) for runModule to pick up. A module's
// own fetch error is not fatal here — it surfaces in runModule's serial
// pass, in manifest order, exactly where a non-prefetching run would
// report it.
func (d *Driver) preFetchAll(ctx context.Context) error {
	limit := d.Config.Concurrency
	if limit <= 0 {
		limit = 4
	}

	d.prefetched = make(map[string]string)
	d.prefetchErr = make(map[string]error)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, mod := range d.Manifest.Modules {
		mod := mod
		canonical := sandbox.CanonicalName(mod.Name)
		if stage.AlreadyStaged(d.GameDir, canonical) {
			continue
		}
		g.Go(func() error {
			root, err := d.fetchAndExtract(gctx, mod, canonical)
			d.mu.Lock()
			if err != nil {
				d.prefetchErr[mod.Name] = err
			} else {
				d.prefetched[mod.Name] = root
			}
			d.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (d *Driver) runModule(ctx context.Context, mod manifest.Module) (ModuleResult, error) {
	canonical := sandbox.CanonicalName(mod.Name)
	res := ModuleResult{Name: mod.Name}

	if stage.AlreadyStaged(d.GameDir, canonical) {
		d.Logger.Infof("module %s already staged, skipping", mod.Name)
		res.Skipped = true
		return res, nil
	}

	modRoot, err := d.resolveModRoot(ctx, mod, canonical)
	if err != nil {
		return res, err
	}

	// committed flips once Promote has copied modRoot into the game
	// directory; until then, any failure below releases the staging
	// directory instead of leaking it.
	committed := false
	defer func() {
		if !committed {
			_ = sandbox.SafeRemoveAll(d.Config.ExtractLocation, canonical)
		}
	}()

	if err := d.mutateModule(mod, modRoot); err != nil {
		return res, err
	}

	if err := stage.Promote(mod.Name, modRoot, d.GameDir, canonical); err != nil {
		return res, err
	}
	committed = true
	_ = sandbox.SafeRemoveAll(d.Config.ExtractLocation, canonical)

	tp2Path, err := findTP2(filepath.Join(d.GameDir, canonical), canonical)
	if err != nil {
		return res, modderr.New(modderr.KindInstall, mod.Name, err)
	}

	outcome, err := d.installModule(ctx, mod, canonical, tp2Path)
	res.Outcome = outcome
	if err != nil {
		return res, modderr.New(modderr.KindInstall, mod.Name, err)
	}
	return res, nil
}

// resolveModRoot returns the pre-fetched root for mod if preFetchAll already
// ran, otherwise fetches and extracts it inline.
func (d *Driver) resolveModRoot(ctx context.Context, mod manifest.Module, canonical string) (string, error) {
	if d.PreFetch {
		d.mu.Lock()
		root, ok := d.prefetched[mod.Name]
		err, failed := d.prefetchErr[mod.Name]
		d.mu.Unlock()
		if ok {
			return root, nil
		}
		if failed {
			return "", err
		}
	}
	return d.fetchAndExtract(ctx, mod, canonical)
}

func (d *Driver) fetchAndExtract(ctx context.Context, mod manifest.Module, canonical string) (string, error) {
	fetched, err := d.Registry.Fetch(ctx, mod.Location, mod.Name)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(fetched)
	if err != nil {
		return "", modderr.New(modderr.KindExtraction, mod.Name, fmt.Errorf("stat fetched path: %w", err))
	}

	if info.IsDir() {
		if err := stage.Promote(mod.Name, fetched, d.Config.ExtractLocation, canonical); err != nil {
			return "", err
		}
		return filepath.Join(d.Config.ExtractLocation, canonical), nil
	}

	root, err := extract.ExtractAndNormalize(ctx, fetched, d.Config.ExtractLocation, canonical, d.Config)
	if err != nil {
		return "", modderr.New(modderr.KindExtraction, mod.Name, err)
	}
	return root, nil
}

func (d *Driver) mutateModule(mod manifest.Module, modRoot string) error {
	if mod.Location != nil {
		patch, replaceOps := mod.Location.Mutators()
		if patch != nil {
			if err := mutate.ApplyPatch(mod.Name, d.Manifest.PatchRoot(), modRoot, *patch); err != nil {
				return err
			}
		}
		for _, op := range replaceOps {
			if err := mutate.ApplyReplace(d.Logger, mod.Name, modRoot, op); err != nil {
				return err
			}
		}
	}
	if err := mutate.ApplyAddConf(mod.Name, modRoot, mod.AddConf); err != nil {
		return err
	}
	return nil
}

func (d *Driver) installModule(ctx context.Context, mod manifest.Module, canonical, tp2Path string) (weidu.Outcome, error) {
	if !mod.Components.Ask && len(mod.Components.Entries) == 0 {
		return weidu.Succeeded, nil
	}

	runner := &weidu.Runner{WeiduPath: d.WeiduPath, GameDir: d.GameDir}

	langs, err := runner.ListLanguages(ctx, tp2Path)
	if err != nil {
		return weidu.Failed, err
	}
	langIndex, err := weidu.ResolveLanguage(d.Manifest.Global.LangPreferences, langs)
	if err != nil {
		return weidu.Failed, err
	}

	logPath := filepath.Join(d.GameDir, canonical, "setup-"+canonical+".log")
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return weidu.Failed, fmt.Errorf("opening setup log: %w", err)
	}
	defer logFile.Close()

	if mod.Components.Ask {
		outcome, err := runner.RunInteractive(ctx, tp2Path, langIndex, d.Manifest.Global.LangDir, logFile, mod.IgnoreWarnings)
		return outcome, err
	}

	var last weidu.Outcome = weidu.Succeeded
	for i, entry := range mod.Components.Entries {
		select {
		case <-ctx.Done():
			return weidu.Failed, ctx.Err()
		default:
		}

		outcome, err := runner.RunComponent(ctx, tp2Path, langIndex, entry.Index, d.Manifest.Global.LangDir, logFile, mod.IgnoreWarnings)
		last = outcome
		if err != nil {
			return outcome, fmt.Errorf("component[%d] (index %d): %w", i, entry.Index, err)
		}
		if !outcome.Advances() {
			return outcome, fmt.Errorf("component[%d] (index %d) did not advance: %s", i, entry.Index, outcome)
		}
	}
	return last, nil
}

func findTP2(modDir, canonical string) (string, error) {
	candidates := []string{canonical + ".tp2", "setup-" + canonical + ".tp2"}
	entries, err := os.ReadDir(modDir)
	if err != nil {
		return "", fmt.Errorf("reading mod directory %s: %w", modDir, err)
	}
	for _, e := range entries {
		lower := strings.ToLower(e.Name())
		for _, c := range candidates {
			if lower == c {
				return filepath.Join(modDir, e.Name()), nil
			}
		}
	}
	return "", fmt.Errorf("no .tp2 file found in %s", modDir)
}
