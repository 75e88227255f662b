package afsk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

// pflag (not unreasonably) assumes it only ever gets called once. But lots of
// test infrastructure was built around "call this command then this command".
// Running it in Go tests (for coverage analysis and convenience etc.) means
// doing some slight bodges.
func setupPflag(args []string) {
	os.Args = args
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
}

func Test_Modem300(t *testing.T) {
	var tmpdir = t.TempDir()
	var file = filepath.Join(tmpdir, "test300.wav")

	setupPflag([]string{"afsk-gen", "-N", "2", "-o", file, "hi", "hello world"})
	GenPacketsMain()

	setupPflag([]string{"afsk-atest", "-L4", "-G4", file})

	var out = CaptureOutput(t, AtestMain)
	assert.Contains(t, out, "48000 samples per second.  300 baud.")
	assert.Contains(t, out, "[1] hi\n")
	assert.Contains(t, out, "[2] hello world\n")
	assert.Contains(t, out, "[4] hello world\n")
	assert.Contains(t, out, "4 messages decoded")
}

func Test_Modem1200ExactBins(t *testing.T) {
	var tmpdir = t.TempDir()
	var file = filepath.Join(tmpdir, "test1200.wav")

	setupPflag([]string{"afsk-gen", "-B", "1200", "-C", "KE0SGQ", "-o", file, "fast"})
	GenPacketsMain()

	setupPflag([]string{"afsk-atest", "-B", "1200", "-x", "-H", "-L1", "-G1", file})

	var out = CaptureOutput(t, AtestMain)
	assert.Contains(t, out, "[1] fastKE0SGQ\n")
	assert.Contains(t, out, "66 61 73 74")
}

func Test_AtestRestartOnPreamble(t *testing.T) {
	var tmpdir = t.TempDir()
	var file = filepath.Join(tmpdir, "uu.wav")

	setupPflag([]string{"afsk-gen", "-o", file, "UU"})
	GenPacketsMain()

	// Without a restart the preamble pattern is just payload.
	setupPflag([]string{"afsk-atest", "-L1", "-G1", file})
	AssertOutputContains(t, AtestMain, "[1] UU\n")

	setupPflag([]string{"afsk-atest", "-R", "-L1", "-G1", file})
	AssertOutputContains(t, AtestMain, "[1] \n")
}

func Test_AtestVersion(t *testing.T) {
	setupPflag([]string{"afsk-atest", "-v"})
	AssertOutputContains(t, AtestMain, "afsk-atest")
}
