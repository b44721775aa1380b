package t8n

import (
	"encoding/json"
	"fmt"
	"math/big"
	"testing"

	coretypes "github.com/daniellehrner/ethexec/core/types"
	"github.com/daniellehrner/ethexec/crypto"
	"github.com/daniellehrner/ethexec/state"
	"github.com/daniellehrner/ethexec/types"
	"github.com/daniellehrner/ethexec/uint256"
)

func TestHexQuantityRoundTrip(t *testing.T) {
	var u HexUint64
	if err := json.Unmarshal([]byte(`"0x1a"`), &u); err != nil || u != 26 {
		t.Fatalf("HexUint64 = %d, err %v", u, err)
	}
	out, _ := json.Marshal(u)
	if string(out) != `"0x1a"` {
		t.Fatalf("HexUint64 marshal = %s", out)
	}

	var b HexBig
	if err := json.Unmarshal([]byte(`"0xde0b6b3a7640000"`), &b); err != nil {
		t.Fatal(err)
	}
	if b.Big().String() != "1000000000000000000" {
		t.Fatalf("HexBig = %s", b.Big())
	}

	var data HexBytes
	if err := json.Unmarshal([]byte(`"0xcafe"`), &data); err != nil || len(data) != 2 {
		t.Fatalf("HexBytes = %x, err %v", data, err)
	}
}

func TestMakePreStateAndDump(t *testing.T) {
	allocJSON := []byte(`{
		"0x095e7baea6a6c7c4c2dfeb977efac326af552d87": {
			"balance": "0x0de0b6b3a7640000",
			"nonce": "0x3",
			"code": "0x6001",
			"storage": {
				"0x0000000000000000000000000000000000000000000000000000000000000001": "0x0000000000000000000000000000000000000000000000000000000000000007"
			}
		}
	}`)
	var alloc Alloc
	if err := json.Unmarshal(allocJSON, &alloc); err != nil {
		t.Fatal(err)
	}

	st := state.NewMemoryState()
	if err := MakePreState(st, alloc); err != nil {
		t.Fatal(err)
	}
	addr := types.HexToAddress("0x095e7baea6a6c7c4c2dfeb977efac326af552d87")
	if st.GetNonce(addr) != 3 {
		t.Fatalf("nonce = %d", st.GetNonce(addr))
	}
	want := uint256.NewFromUint64(1_000_000_000_000_000_000)
	if !st.GetBalance(addr).Eq(want) {
		t.Fatalf("balance = %s", st.GetBalance(addr))
	}
	slot := types.Hash{31: 1}
	if got := st.GetStorage(addr, slot); got != (types.Hash{31: 7}) {
		t.Fatalf("storage = %x", got)
	}
	// Seeded storage must be visible as original values.
	if got := st.GetOriginalStorage(addr, slot); got != (types.Hash{31: 7}) {
		t.Fatalf("original storage = %x", got)
	}

	dumped := DumpAlloc(st)
	rec, ok := dumped[addr.Hex()]
	if !ok {
		t.Fatalf("dump lost the account: %v", dumped)
	}
	if rec.Nonce == nil || uint64(*rec.Nonce) != 3 || len(rec.Code) != 2 {
		t.Fatalf("dump record = %+v", rec)
	}
	if len(rec.StorageJSON) != 1 {
		t.Fatalf("dump storage = %+v", rec.StorageJSON)
	}
}

// renderSignedLegacyTx signs a value transfer and renders it in the
// txs.json shape.
func renderSignedLegacyTx(t *testing.T, nonce uint64, to types.Address, value *big.Int) (string, types.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	sender := crypto.PubkeyToAddress(key.PubKey().SerializeUncompressed())
	signed, err := coretypes.NewSigner(1).SignTx(coretypes.NewTransaction(&coretypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: big.NewInt(10),
		Gas:      21_000,
		To:       &to,
		Value:    value,
	}), key)
	if err != nil {
		t.Fatal(err)
	}
	v, r, s := signed.RawSignatureValues()
	txJSON := fmt.Sprintf(`{
		"nonce": "0x%x",
		"gasPrice": "0xa",
		"gas": "0x5208",
		"to": "%s",
		"value": "0x%x",
		"input": "0x",
		"v": "0x%x",
		"r": "0x%x",
		"s": "0x%x"
	}`, nonce, to.Hex(), value, v, r, s)
	return txJSON, sender
}

func TestTransitionLegacyTransfer(t *testing.T) {
	recipient := types.HexToAddress("0x8a0a19589531694250d570040a0c4b74576919b8")
	txJSON, sender := renderSignedLegacyTx(t, 0, recipient, big.NewInt(1_000_000))

	allocJSON := []byte(fmt.Sprintf(`{
		"%s": { "balance": "0x8ac7230489e80000" }
	}`, sender.Hex()))
	envJSON := []byte(`{
		"currentCoinbase": "0x2adc25665018aa1fe0e6bc666dac8fc2697ff9ba",
		"currentGasLimit": "0x1c9c380",
		"currentNumber": "0x1",
		"currentTimestamp": "0x3e8",
		"currentBaseFee": "0x7"
	}`)
	txsJSON := []byte("[" + txJSON + "]")

	out, err := Transition(allocJSON, envJSON, txsJSON, Config{Fork: "Shanghai", ChainID: 1, Reward: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Result.Receipts) != 1 || len(out.Result.Rejected) != 0 {
		t.Fatalf("result = %+v", out.Result)
	}
	if out.Result.GasUsed != 21_000 {
		t.Fatalf("gas used = %d", out.Result.GasUsed)
	}
	if out.Result.StateRoot == (types.Hash{}).Hex() {
		t.Fatalf("state root missing")
	}

	rec, ok := out.Alloc[recipient.Hex()]
	if !ok {
		t.Fatalf("recipient missing from post-alloc: %v", out.Alloc)
	}
	if rec.Balance.Big().Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("recipient balance = %s", rec.Balance.Big())
	}
	// Coinbase earned the priority fee.
	if _, ok := out.Alloc[types.HexToAddress("0x2adc25665018aa1fe0e6bc666dac8fc2697ff9ba").Hex()]; !ok {
		t.Fatal("coinbase missing from post-alloc")
	}
}

func TestTransitionRejectsUnderfundedTx(t *testing.T) {
	recipient := types.HexToAddress("0x8a0a19589531694250d570040a0c4b74576919b8")
	txJSON, sender := renderSignedLegacyTx(t, 0, recipient, big.NewInt(1_000_000))

	// The sender account exists but cannot cover gas * price + value.
	allocJSON := []byte(fmt.Sprintf(`{
		"%s": { "balance": "0x1" }
	}`, sender.Hex()))
	envJSON := []byte(`{
		"currentCoinbase": "0x2adc25665018aa1fe0e6bc666dac8fc2697ff9ba",
		"currentGasLimit": "0x1c9c380",
		"currentNumber": "0x1",
		"currentTimestamp": "0x3e8",
		"currentBaseFee": "0x7"
	}`)
	txsJSON := []byte("[" + txJSON + "]")

	out, err := Transition(allocJSON, envJSON, txsJSON, Config{Fork: "Shanghai", ChainID: 1, Reward: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Result.Receipts) != 0 || len(out.Result.Rejected) != 1 {
		t.Fatalf("result = %+v", out.Result)
	}
	if out.Result.Rejected[0].Index != 0 || out.Result.Rejected[0].Error == "" {
		t.Fatalf("rejection = %+v", out.Result.Rejected[0])
	}
}

func TestTransitionUnsupportedFork(t *testing.T) {
	_, err := Transition([]byte(`{}`), []byte(`{
		"currentCoinbase": "0x2adc25665018aa1fe0e6bc666dac8fc2697ff9ba",
		"currentGasLimit": "0x1c9c380",
		"currentNumber": "0x1",
		"currentTimestamp": "0x3e8"
	}`), []byte(`[]`), Config{Fork: "Frontier", ChainID: 1, Reward: -1})
	if err == nil {
		t.Fatal("pre-Merge fork accepted")
	}
}
