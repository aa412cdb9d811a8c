package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExternalExtractor shells out to a configured command for archive formats
// modda has no built-in decoder for (rar, 7z, ...). Tokens are substituted
// literally into an argument vector — never through a shell — so archive
// or config-supplied paths can't be interpreted as shell syntax.
type ExternalExtractor struct {
	Command string
	Args    []string
}

func (e ExternalExtractor) Extract(ctx context.Context, archivePath, dest string) error {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = substituteTokens(a, archivePath, dest)
	}

	cmd := exec.CommandContext(ctx, e.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("external extractor %s failed: %w: %s", e.Command, err, stderr.String())
	}
	return nil
}

func substituteTokens(arg, input, target string) string {
	arg = strings.ReplaceAll(arg, "${input}", input)
	arg = strings.ReplaceAll(arg, "${target}", target)
	return arg
}
