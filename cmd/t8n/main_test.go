package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const testEnvJSON = `{
	"currentCoinbase": "0x2adc25665018aa1fe0e6bc666dac8fc2697ff9ba",
	"currentGasLimit": "0x1c9c380",
	"currentNumber": "0x1",
	"currentTimestamp": "0x3e8",
	"currentBaseFee": "0x7"
}`

func TestRunEmptyBlock(t *testing.T) {
	dir := t.TempDir()
	alloc := writeInput(t, dir, "in_alloc.json", `{}`)
	env := writeInput(t, dir, "in_env.json", testEnvJSON)
	txs := writeInput(t, dir, "in_txs.json", `[]`)

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"--input.alloc", alloc,
		"--input.env", env,
		"--input.txs", txs,
		"--output.basedir", dir,
		"--output.result", "result.json",
		"--output.alloc", "out_alloc.json",
		"--verbosity", "0",
	}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}

	data, err := os.ReadFile(filepath.Join(dir, "result.json"))
	if err != nil {
		t.Fatal(err)
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("result.json not valid JSON: %v", err)
	}
	// The empty-trie root for an empty pre-state and no transactions.
	if result["stateRoot"] != "0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421" {
		t.Fatalf("stateRoot = %v", result["stateRoot"])
	}
	if _, err := os.Stat(filepath.Join(dir, "out_alloc.json")); err != nil {
		t.Fatalf("alloc output missing: %v", err)
	}
}

func TestRunResultToStdout(t *testing.T) {
	dir := t.TempDir()
	alloc := writeInput(t, dir, "alloc.json", `{}`)
	env := writeInput(t, dir, "env.json", testEnvJSON)
	txs := writeInput(t, dir, "txs.json", `[]`)

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"--input.alloc", alloc,
		"--input.env", env,
		"--input.txs", txs,
		"--output.basedir", dir,
		"--output.result", "stdout",
		"--output.alloc", "out_alloc.json",
		"--verbosity", "0",
	}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if !bytes.Contains(stdout.Bytes(), []byte("stateRoot")) {
		t.Fatalf("stdout result missing: %s", stdout.String())
	}
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	alloc := writeInput(t, dir, "alloc.json", `{}`)
	env := writeInput(t, dir, "env.json", testEnvJSON)
	txs := writeInput(t, dir, "txs.json", `[]`)
	badJSON := writeInput(t, dir, "bad.json", `{not json`)

	cases := []struct {
		name string
		args []string
		want int
	}{
		{
			"missing input file",
			[]string{"--input.alloc", filepath.Join(dir, "nope.json"), "--input.env", env, "--input.txs", txs},
			exitIO,
		},
		{
			"malformed alloc json",
			[]string{"--input.alloc", badJSON, "--input.env", env, "--input.txs", txs, "--output.basedir", dir},
			exitJSON,
		},
		{
			"unknown fork",
			[]string{"--input.alloc", alloc, "--input.env", env, "--input.txs", txs, "--state.fork", "Frontier"},
			exitConfig,
		},
		{
			"unknown flag",
			[]string{"--nope"},
			exitConfig,
		},
	}
	for _, tc := range cases {
		var stdout, stderr bytes.Buffer
		args := append([]string{"--verbosity", "0"}, tc.args...)
		if code := run(args, &stdout, &stderr); code != tc.want {
			t.Errorf("%s: exit code = %d, want %d (stderr: %s)", tc.name, code, tc.want, stderr.String())
		}
	}
}
