package t8n

import (
	"github.com/daniellehrner/ethexec/executor"
	"github.com/daniellehrner/ethexec/types"
)

// Result is the result.json schema.
type Result struct {
	StateRoot       string         `json:"stateRoot"`
	TxRoot          string         `json:"txRoot"`
	ReceiptRoot     string         `json:"receiptsRoot"`
	WithdrawalsRoot *string        `json:"withdrawalsRoot,omitempty"`
	LogsHash        string         `json:"logsHash"`
	LogsBloom       HexBytes       `json:"logsBloom"`
	Receipts        []*ReceiptJSON `json:"receipts"`
	Rejected        []*RejectedTx  `json:"rejected,omitempty"`
	GasUsed         HexUint64      `json:"gasUsed"`
	BlobGasUsed     *HexUint64     `json:"currentBlobGasUsed,omitempty"`
}

// ReceiptJSON is one receipt in result.json.
type ReceiptJSON struct {
	Type              HexUint64  `json:"type"`
	Root              string     `json:"root"`
	Status            HexUint64  `json:"status"`
	CumulativeGasUsed HexUint64  `json:"cumulativeGasUsed"`
	LogsBloom         HexBytes   `json:"logsBloom"`
	Logs              []*LogJSON `json:"logs"`
	TransactionHash   string     `json:"transactionHash"`
	ContractAddress   string     `json:"contractAddress"`
	GasUsed           HexUint64  `json:"gasUsed"`
	BlockHash         string     `json:"blockHash"`
	TransactionIndex  HexUint64  `json:"transactionIndex"`
}

// LogJSON is one log entry in a receipt.
type LogJSON struct {
	Address          string    `json:"address"`
	Topics           []string  `json:"topics"`
	Data             HexBytes  `json:"data"`
	BlockNumber      HexUint64 `json:"blockNumber"`
	TransactionHash  string    `json:"transactionHash"`
	TransactionIndex HexUint64 `json:"transactionIndex"`
	LogIndex         HexUint64 `json:"logIndex"`
	Removed          bool      `json:"removed"`
}

// RejectedTx is one rejected-list entry.
type RejectedTx struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// MakeResult converts the executor's block result into the result.json
// shape.
func MakeResult(res *executor.BlockResult, blockNumber uint64, isShanghai bool) *Result {
	out := &Result{
		StateRoot:   res.StateRoot.Hex(),
		TxRoot:      res.TxRoot.Hex(),
		ReceiptRoot: res.ReceiptRoot.Hex(),
		LogsHash:    res.LogsHash.Hex(),
		LogsBloom:   res.Bloom.Bytes(),
		GasUsed:     HexUint64(res.GasUsed),
	}
	if isShanghai {
		root := res.WithdrawalsRoot.Hex()
		out.WithdrawalsRoot = &root
	}
	if res.BlobGasUsed > 0 {
		v := HexUint64(res.BlobGasUsed)
		out.BlobGasUsed = &v
	}

	logIndex := uint64(0)
	for _, r := range res.Receipts {
		rj := &ReceiptJSON{
			Type:              HexUint64(r.Type),
			Root:              "0x",
			Status:            HexUint64(r.Status),
			CumulativeGasUsed: HexUint64(r.CumulativeGasUsed),
			LogsBloom:         r.Bloom.Bytes(),
			Logs:              []*LogJSON{},
			TransactionHash:   r.TxHash.Hex(),
			ContractAddress:   r.ContractAddress.Hex(),
			GasUsed:           HexUint64(r.GasUsed),
			BlockHash:         (types.Hash{}).Hex(),
			TransactionIndex:  HexUint64(r.TransactionIndex),
		}
		for _, l := range r.Logs {
			topics := make([]string, len(l.Topics))
			for i, t := range l.Topics {
				topics[i] = t.Hex()
			}
			rj.Logs = append(rj.Logs, &LogJSON{
				Address:          l.Address.Hex(),
				Topics:           topics,
				Data:             l.Data,
				BlockNumber:      HexUint64(blockNumber),
				TransactionHash:  r.TxHash.Hex(),
				TransactionIndex: HexUint64(r.TransactionIndex),
				LogIndex:         HexUint64(logIndex),
			})
			logIndex++
		}
		out.Receipts = append(out.Receipts, rj)
	}

	for _, rej := range res.Rejected {
		out.Rejected = append(out.Rejected, &RejectedTx{
			Index: rej.Index,
			Error: rej.Err.Error(),
		})
	}
	return out
}
