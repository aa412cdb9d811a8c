package reverse

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleLog = `// Log of Currently Installed WeiDU Mods
~FAITHS_AND_POWERS/FAITHS_AND_POWERS.TP2~ #0 #0 // Faiths and Powers: Core
~FAITHS_AND_POWERS/FAITHS_AND_POWERS.TP2~ #0 #1 // Faiths and Powers: Subclass - Druid Of Old Faith
~FAITHS_AND_POWERS/FAITHS_AND_POWERS.TP2~ #0 #4 // Faiths and Powers: Subclass - Priest Of Lathander
`

func TestParseLogParsesThreeEntries(t *testing.T) {
	entries, err := ParseLog(strings.NewReader(sampleLog))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "faiths_and_powers", entries[0].Module)
	require.Equal(t, 0, entries[0].LangIndex)
	require.Equal(t, 4, entries[2].ComponentIdx)
	require.Equal(t, "Faiths and Powers: Subclass - Priest Of Lathander", entries[2].ComponentName)
}

func TestGroupByModuleProducesOneModuleThreeEntries(t *testing.T) {
	entries, err := ParseLog(strings.NewReader(sampleLog))
	require.NoError(t, err)

	modules := GroupByModule(entries)
	require.Len(t, modules, 1)
	require.Equal(t, "faiths_and_powers", modules[0].Name)
	require.Len(t, modules[0].Components.Entries, 3)
	require.Equal(t, 0, modules[0].Components.Entries[0].Index)
	require.Equal(t, 1, modules[0].Components.Entries[1].Index)
	require.Equal(t, 4, modules[0].Components.Entries[2].Index)
}

func TestGroupByModuleSeparatesNonConsecutiveRuns(t *testing.T) {
	log := `~A.TP2~ #0 #0 // a0
~B.TP2~ #0 #0 // b0
~A.TP2~ #0 #1 // a1
`
	entries, err := ParseLog(strings.NewReader(log))
	require.NoError(t, err)
	modules := GroupByModule(entries)
	require.Len(t, modules, 3)
	require.Equal(t, "a", modules[0].Name)
	require.Equal(t, "b", modules[1].Name)
	require.Equal(t, "a", modules[2].Name)
}

func TestGuessLangPreferences(t *testing.T) {
	require.Equal(t, []string{"english", "american english"}, GuessLangPreferences("en_us"))
	require.Equal(t, []string{"#rx#^fran[cç]ais", "french"}, GuessLangPreferences("fr_fr"))
	require.Nil(t, GuessLangPreferences("de_de"))
}

func TestGenerateReadsLogAndConf(t *testing.T) {
	gameDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(gameDir, "weidu.log"), []byte(sampleLog), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(gameDir, "weidu.conf"), []byte("lang_dir = fr_fr\n"), 0o644))

	m, err := Generate(gameDir)
	require.NoError(t, err)
	require.Equal(t, "fr_fr", m.Global.LangDir)
	require.Equal(t, []string{"#rx#^fran[cç]ais", "french"}, m.Global.LangPreferences)
	require.Len(t, m.Modules, 1)
}

func TestWriteToRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "manifest.yml")
	require.NoError(t, os.WriteFile(out, []byte("existing"), 0o644))

	m, err := Generate(writeFixtureGameDir(t))
	require.NoError(t, err)

	err = WriteTo(m, out)
	require.Error(t, err)
}

func writeFixtureGameDir(t *testing.T) string {
	t.Helper()
	gameDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(gameDir, "weidu.log"), []byte(sampleLog), 0o644))
	return gameDir
}
