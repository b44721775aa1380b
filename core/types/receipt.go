package types

import (
	"github.com/daniellehrner/ethexec/crypto"
	"github.com/daniellehrner/ethexec/rlp"
	"github.com/daniellehrner/ethexec/trie"
	"github.com/daniellehrner/ethexec/types"
)

// Receipt status codes.
const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

// Receipt records the outcome of one executed transaction.
type Receipt struct {
	Type              byte
	Status            uint64
	CumulativeGasUsed uint64
	Bloom             types.Bloom
	Logs              []*types.Log

	// Implementation fields, filled by the executor.
	TxHash           types.Hash
	ContractAddress  types.Address
	GasUsed          uint64
	BlobGasUsed      uint64
	TransactionIndex uint
}

// EncodeRLP returns the consensus encoding of the receipt: the RLP of
// [status, cumulativeGasUsed, bloom, logs], prefixed by the type byte
// for non-legacy receipts.
func (r *Receipt) EncodeRLP() []byte {
	var payload []byte
	payload = appendUint64(payload, r.Status)
	payload = appendUint64(payload, r.CumulativeGasUsed)
	payload = appendBytes(payload, r.Bloom[:])
	payload = append(payload, encodeLogs(r.Logs)...)
	enc := rlp.WrapList(payload)
	if r.Type == LegacyTxType {
		return enc
	}
	return append([]byte{r.Type}, enc...)
}

func encodeLogs(logs []*types.Log) []byte {
	var payload []byte
	for _, log := range logs {
		var item []byte
		item = appendBytes(item, log.Address[:])
		var topics []byte
		for _, topic := range log.Topics {
			topics = appendBytes(topics, topic[:])
		}
		item = append(item, rlp.WrapList(topics)...)
		item = appendBytes(item, log.Data)
		payload = append(payload, rlp.WrapList(item)...)
	}
	return rlp.WrapList(payload)
}

// DeriveTxsRoot computes the transaction trie root: each transaction's
// wire encoding keyed by the RLP of its index.
func DeriveTxsRoot(txs []*Transaction) types.Hash {
	if len(txs) == 0 {
		return types.EmptyRootHash
	}
	t := trie.New()
	for i, tx := range txs {
		t.Put(indexKey(uint64(i)), tx.EncodeRLP())
	}
	return t.Hash()
}

// DeriveReceiptsRoot computes the receipt trie root over the consensus
// receipt encodings.
func DeriveReceiptsRoot(receipts []*Receipt) types.Hash {
	if len(receipts) == 0 {
		return types.EmptyRootHash
	}
	t := trie.New()
	for i, r := range receipts {
		t.Put(indexKey(uint64(i)), r.EncodeRLP())
	}
	return t.Hash()
}

// DeriveWithdrawalsRoot computes the withdrawal trie root.
func DeriveWithdrawalsRoot(withdrawals []*Withdrawal) types.Hash {
	if len(withdrawals) == 0 {
		return types.EmptyRootHash
	}
	t := trie.New()
	for i, w := range withdrawals {
		t.Put(indexKey(uint64(i)), w.encodeRLP())
	}
	return t.Hash()
}

func indexKey(i uint64) []byte {
	enc, _ := rlp.EncodeToBytes(i)
	return enc
}

// LogsHash is keccak256 of the RLP encoding of the log list, as carried
// in the t8n result.
func LogsHash(logs []*types.Log) types.Hash {
	return crypto.Keccak256Hash(encodeLogs(logs))
}
