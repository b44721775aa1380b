package t8n

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/daniellehrner/ethexec/executor"
	"github.com/daniellehrner/ethexec/log"
	"github.com/daniellehrner/ethexec/state"
)

// Config parameterizes one transition run.
type Config struct {
	Fork    string
	ChainID uint64

	// Reward is the block reward paid to the coinbase; a negative value
	// disables the payout.
	Reward int64
}

// Output is the pair of artifacts a transition produces: the result
// channel and the post-state allocation.
type Output struct {
	Result *Result
	Alloc  Alloc
}

// Transition parses the three input documents, executes the block and
// renders the two output documents.
func Transition(allocJSON, envJSON, txsJSON []byte, cfg Config) (*Output, error) {
	logger := log.Default().Module("t8n")

	var alloc Alloc
	if err := json.Unmarshal(allocJSON, &alloc); err != nil {
		return nil, fmt.Errorf("alloc: %w", err)
	}
	var env Env
	if err := json.Unmarshal(envJSON, &env); err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}
	var txList []*TxJSON
	if err := json.Unmarshal(txsJSON, &txList); err != nil {
		return nil, fmt.Errorf("txs: %w", err)
	}

	rules, err := executor.Rules(cfg.Fork)
	if err != nil {
		return nil, err
	}

	st := state.NewMemoryState()
	if err := MakePreState(st, alloc); err != nil {
		return nil, err
	}

	environment, err := env.ToEnvironment()
	if err != nil {
		return nil, err
	}
	txs, err := ParseTxs(txList)
	if err != nil {
		return nil, err
	}

	execCfg := executor.Config{ChainID: cfg.ChainID, Fork: rules}
	if cfg.Reward >= 0 {
		execCfg.Reward = big.NewInt(cfg.Reward)
	}

	logger.Info("executing block",
		"fork", cfg.Fork, "chainid", cfg.ChainID,
		"txs", len(txs), "accounts", len(alloc))

	res, err := executor.New(st, execCfg).ExecuteBlock(environment, txs)
	if err != nil {
		return nil, err
	}
	logger.Info("block executed",
		"gasUsed", res.GasUsed,
		"receipts", len(res.Receipts),
		"rejected", len(res.Rejected),
		"stateRoot", res.StateRoot)

	return &Output{
		Result: MakeResult(res, environment.Number, rules.IsShanghai),
		Alloc:  DumpAlloc(st),
	}, nil
}
