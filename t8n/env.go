package t8n

import (
	"fmt"

	coretypes "github.com/daniellehrner/ethexec/core/types"
	"github.com/daniellehrner/ethexec/executor"
	"github.com/daniellehrner/ethexec/types"
)

// Env is the env.json schema: the block environment the transactions
// execute under.
type Env struct {
	Coinbase      string            `json:"currentCoinbase"`
	GasLimit      HexUint64         `json:"currentGasLimit"`
	Number        HexUint64         `json:"currentNumber"`
	Timestamp     HexUint64         `json:"currentTimestamp"`
	Difficulty    *HexBig           `json:"currentDifficulty,omitempty"`
	Random        *HexBig           `json:"currentRandom,omitempty"`
	BaseFee       *HexBig           `json:"currentBaseFee,omitempty"`
	ExcessBlobGas *HexUint64        `json:"currentExcessBlobGas,omitempty"`
	BlockHashes   map[string]string `json:"blockHashes,omitempty"`
	Withdrawals   []*EnvWithdrawal  `json:"withdrawals,omitempty"`
}

// EnvWithdrawal is one withdrawal record in env.json.
type EnvWithdrawal struct {
	Index          HexUint64 `json:"index"`
	ValidatorIndex HexUint64 `json:"validatorIndex"`
	Address        string    `json:"address"`
	Amount         HexUint64 `json:"amount"`
}

// ToEnvironment converts the JSON schema to the executor's block
// environment.
func (e *Env) ToEnvironment() (*executor.Environment, error) {
	env := &executor.Environment{
		Coinbase:  types.HexToAddress(e.Coinbase),
		GasLimit:  uint64(e.GasLimit),
		Number:    uint64(e.Number),
		Timestamp: uint64(e.Timestamp),
	}

	// Post-Merge the PREVRANDAO value arrives as currentRandom; the
	// legacy currentDifficulty field is accepted as a fallback.
	randao := e.Random
	if randao == nil {
		randao = e.Difficulty
	}
	if randao != nil {
		b := randao.Big().Bytes()
		var h types.Hash
		copy(h[32-len(b):], b)
		env.PrevRandao = h
	}

	if e.BaseFee != nil {
		env.BaseFee = e.BaseFee.Big()
	}
	if e.ExcessBlobGas != nil {
		v := uint64(*e.ExcessBlobGas)
		env.ExcessBlobGas = &v
	}

	if len(e.BlockHashes) > 0 {
		env.BlockHashes = make(map[uint64]types.Hash, len(e.BlockHashes))
		for numStr, hashStr := range e.BlockHashes {
			num, err := parseUint64(numStr)
			if err != nil {
				return nil, fmt.Errorf("blockHashes key %q: %w", numStr, err)
			}
			env.BlockHashes[num] = types.HexToHash(hashStr)
		}
	}

	for _, w := range e.Withdrawals {
		env.Withdrawals = append(env.Withdrawals, &coretypes.Withdrawal{
			Index:          uint64(w.Index),
			ValidatorIndex: uint64(w.ValidatorIndex),
			Address:        types.HexToAddress(w.Address),
			Amount:         uint64(w.Amount),
		})
	}
	return env, nil
}
