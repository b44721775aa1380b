// Command t8n is the state transition tool: it reads a pre-state
// allocation, a block environment and a transaction list, executes the
// transactions through the EVM, and writes the post-state allocation
// and the execution result.
//
// Usage:
//
//	t8n [flags]
//
// Flags:
//
//	--input.alloc     Pre-state allocation file (default alloc.json)
//	--input.env       Block environment file (default env.json)
//	--input.txs       Transaction list file (default txs.json)
//	--output.basedir  Output directory (default .)
//	--output.result   Result file name (default result.json)
//	--output.alloc    Post-state allocation file name (default alloc.json)
//	--state.fork      Fork name (default Shanghai)
//	--state.chainid   Chain id (default 1)
//	--state.reward    Block reward in wei, -1 disables (default -1)
//	--verbosity       Log level 0-5 (default 3)
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/daniellehrner/ethexec/executor"
	"github.com/daniellehrner/ethexec/log"
	"github.com/daniellehrner/ethexec/rlp"
	"github.com/daniellehrner/ethexec/t8n"
)

// Exit codes of the t8n interface.
const (
	exitOK               = 0
	exitGeneral          = 1
	exitEVM              = 2
	exitConfig           = 3
	exitMissingBlockHash = 4
	exitJSON             = 10
	exitIO               = 11
	exitRLP              = 12
)

// config holds the parsed CLI flags.
type config struct {
	inputAlloc    string
	inputEnv      string
	inputTxs      string
	outputBasedir string
	outputResult  string
	outputAlloc   string
	fork          string
	chainID       uint64
	reward        int64
	verbosity     int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is the actual entry point, returning an exit code. It takes the
// CLI arguments without the program name so it can be tested in
// isolation.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, exit, code := parseFlags(args, stderr)
	if exit {
		return code
	}
	log.SetDefault(log.New(log.VerbosityToLevel(cfg.verbosity)))

	allocJSON, err := os.ReadFile(cfg.inputAlloc)
	if err != nil {
		fmt.Fprintf(stderr, "reading alloc: %v\n", err)
		return exitIO
	}
	envJSON, err := os.ReadFile(cfg.inputEnv)
	if err != nil {
		fmt.Fprintf(stderr, "reading env: %v\n", err)
		return exitIO
	}
	txsJSON, err := os.ReadFile(cfg.inputTxs)
	if err != nil {
		fmt.Fprintf(stderr, "reading txs: %v\n", err)
		return exitIO
	}

	out, err := t8n.Transition(allocJSON, envJSON, txsJSON, t8n.Config{
		Fork:    cfg.fork,
		ChainID: cfg.chainID,
		Reward:  cfg.reward,
	})
	if err != nil {
		fmt.Fprintf(stderr, "transition failed: %v\n", err)
		return exitCodeFor(err)
	}

	if code := writeJSON(cfg, cfg.outputResult, out.Result, stdout, stderr); code != exitOK {
		return code
	}
	if code := writeJSON(cfg, cfg.outputAlloc, out.Alloc, stdout, stderr); code != exitOK {
		return code
	}
	return exitOK
}

// writeJSON marshals v to the named output, where the special name
// "stdout" streams to the process's standard output instead of a file.
func writeJSON(cfg config, name string, v any, stdout, stderr io.Writer) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "encoding %s: %v\n", name, err)
		return exitJSON
	}
	data = append(data, '\n')

	if name == "stdout" {
		if _, err := stdout.Write(data); err != nil {
			return exitIO
		}
		return exitOK
	}
	path := filepath.Join(cfg.outputBasedir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(stderr, "writing %s: %v\n", path, err)
		return exitIO
	}
	return exitOK
}

// exitCodeFor classifies a transition error into the t8n exit-code
// contract.
func exitCodeFor(err error) int {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, executor.ErrMissingBlockHash):
		return exitMissingBlockHash
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return exitJSON
	case isRLPError(err):
		return exitRLP
	case strings.Contains(err.Error(), "unsupported fork"):
		return exitConfig
	default:
		return exitEVM
	}
}

func isRLPError(err error) bool {
	for _, sentinel := range []error{
		rlp.ErrExpectedString, rlp.ErrExpectedList, rlp.ErrCanonSize,
		rlp.ErrCanonInt, rlp.ErrNonCanonicalSize, rlp.ErrEOL,
		rlp.ErrUint64Range, rlp.ErrUint256Range,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// parseFlags parses CLI arguments. It returns the config, whether the
// caller should exit immediately, and the exit code for that case.
func parseFlags(args []string, stderr io.Writer) (config, bool, int) {
	var cfg config
	fs := flag.NewFlagSet("t8n", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.inputAlloc, "input.alloc", "alloc.json", "pre-state allocation file")
	fs.StringVar(&cfg.inputEnv, "input.env", "env.json", "block environment file")
	fs.StringVar(&cfg.inputTxs, "input.txs", "txs.json", "transaction list file")
	fs.StringVar(&cfg.outputBasedir, "output.basedir", ".", "output directory")
	fs.StringVar(&cfg.outputResult, "output.result", "result.json", "result file name")
	fs.StringVar(&cfg.outputAlloc, "output.alloc", "alloc.json", "post-state allocation file name")
	fs.StringVar(&cfg.fork, "state.fork", "Shanghai", "fork name")
	fs.Uint64Var(&cfg.chainID, "state.chainid", 1, "chain id")
	fs.Int64Var(&cfg.reward, "state.reward", -1, "block reward in wei, -1 disables")
	fs.IntVar(&cfg.verbosity, "verbosity", 3, "log level 0-5")

	if err := fs.Parse(args); err != nil {
		return cfg, true, exitConfig
	}
	if _, err := executor.Rules(cfg.fork); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return cfg, true, exitConfig
	}
	return cfg, false, exitOK
}
