package state

import (
	"sort"

	"github.com/daniellehrner/ethexec/crypto"
	"github.com/daniellehrner/ethexec/rlp"
	"github.com/daniellehrner/ethexec/trie"
	"github.com/daniellehrner/ethexec/types"
	"github.com/daniellehrner/ethexec/uint256"
)

// stateObject is the in-memory representation of a single account: its
// account record, its code and its storage.
type stateObject struct {
	account types.Account
	code    []byte

	// dirtyStorage holds writes made during the current transaction;
	// committedStorage holds the value as of the start of the current
	// transaction. GetOriginalStorage reads committedStorage.
	dirtyStorage     map[types.Hash]types.Hash
	committedStorage map[types.Hash]types.Hash

	selfDestructed bool
}

func newStateObject() *stateObject {
	return &stateObject{
		account:          types.NewAccount(),
		dirtyStorage:     make(map[types.Hash]types.Hash),
		committedStorage: make(map[types.Hash]types.Hash),
	}
}

// MemoryState is an in-memory, journaled implementation of Access.
type MemoryState struct {
	objects          map[types.Address]*stateObject
	journal          *journal
	logs             map[types.Hash][]*types.Log
	refund           uint64
	accessList       *accessList
	transientStorage map[types.Address]map[types.Hash]types.Hash

	txHash  types.Hash
	txIndex int
}

// NewMemoryState creates a new, empty in-memory world state.
func NewMemoryState() *MemoryState {
	return &MemoryState{
		objects:          make(map[types.Address]*stateObject),
		journal:          newJournal(),
		logs:             make(map[types.Hash][]*types.Log),
		accessList:       newAccessList(),
		transientStorage: make(map[types.Address]map[types.Hash]types.Hash),
	}
}

func (s *MemoryState) getOrNewObject(addr types.Address) *stateObject {
	if obj := s.objects[addr]; obj != nil {
		return obj
	}
	obj := newStateObject()
	s.objects[addr] = obj
	return obj
}

// --- Account existence and lifecycle ---

func (s *MemoryState) AccountExists(addr types.Address) bool {
	return s.objects[addr] != nil
}

func (s *MemoryState) AccountIsEmpty(addr types.Address) bool {
	obj := s.objects[addr]
	if obj == nil {
		return true
	}
	return obj.account.IsEmpty()
}

// CreateContract creates a contract account at addr with nonce 1, per
// EIP-161, ensuring the account is non-empty even before code is set. It
// is a no-op if the account already exists.
func (s *MemoryState) CreateContract(addr types.Address) {
	if s.objects[addr] != nil {
		return
	}
	s.journal.append(createAccountChange{addr: addr, prev: nil})
	obj := newStateObject()
	obj.account.Nonce = 1
	s.objects[addr] = obj
}

// DeleteAccount removes an account entirely. SELFDESTRUCT goes through
// SelfDestruct instead, which preserves the account until the next
// BeginTransaction removes it.
func (s *MemoryState) DeleteAccount(addr types.Address) {
	prev := s.objects[addr]
	s.journal.append(createAccountChange{addr: addr, prev: prev})
	delete(s.objects, addr)
}

// --- Balance ---

func (s *MemoryState) GetBalance(addr types.Address) *uint256.Int {
	if obj := s.objects[addr]; obj != nil {
		return obj.account.Balance.Clone()
	}
	return uint256.Zero()
}

func (s *MemoryState) SetBalance(addr types.Address, balance *uint256.Int) {
	obj := s.getOrNewObject(addr)
	s.journal.append(balanceChange{addr: addr, prev: obj.account.Balance.Clone()})
	obj.account.Balance = balance.Clone()
}

func (s *MemoryState) AddBalance(addr types.Address, amount *uint256.Int) {
	obj := s.getOrNewObject(addr)
	s.journal.append(balanceChange{addr: addr, prev: obj.account.Balance.Clone()})
	obj.account.Balance = new(uint256.Int).Add(obj.account.Balance, amount)
}

// SubBalance subtracts amount from addr's balance. Returns false without
// modifying state if the balance is insufficient.
func (s *MemoryState) SubBalance(addr types.Address, amount *uint256.Int) bool {
	obj := s.getOrNewObject(addr)
	if obj.account.Balance.Lt(amount) {
		return false
	}
	s.journal.append(balanceChange{addr: addr, prev: obj.account.Balance.Clone()})
	obj.account.Balance = new(uint256.Int).Sub(obj.account.Balance, amount)
	return true
}

// --- Nonce ---

func (s *MemoryState) GetNonce(addr types.Address) uint64 {
	if obj := s.objects[addr]; obj != nil {
		return obj.account.Nonce
	}
	return 0
}

func (s *MemoryState) SetNonce(addr types.Address, nonce uint64) {
	obj := s.getOrNewObject(addr)
	s.journal.append(nonceChange{addr: addr, prev: obj.account.Nonce})
	obj.account.Nonce = nonce
}

func (s *MemoryState) IncrementNonce(addr types.Address) uint64 {
	obj := s.getOrNewObject(addr)
	old := obj.account.Nonce
	s.journal.append(nonceChange{addr: addr, prev: old})
	obj.account.Nonce = old + 1
	return old
}

// --- Code ---

func (s *MemoryState) GetCode(addr types.Address) []byte {
	if obj := s.objects[addr]; obj != nil {
		return obj.code
	}
	return nil
}

func (s *MemoryState) GetCodeSize(addr types.Address) int {
	if obj := s.objects[addr]; obj != nil {
		return len(obj.code)
	}
	return 0
}

func (s *MemoryState) GetCodeHash(addr types.Address) types.Hash {
	if obj := s.objects[addr]; obj != nil {
		return obj.account.CodeHash
	}
	return types.Hash{}
}

func (s *MemoryState) SetCode(addr types.Address, code []byte) {
	obj := s.getOrNewObject(addr)
	s.journal.append(codeChange{addr: addr, prevCode: obj.code, prevHash: obj.account.CodeHash})
	obj.code = code
	obj.account.CodeHash = crypto.Keccak256Hash(code)
}

// --- Storage ---

func (s *MemoryState) GetStorage(addr types.Address, slot types.Hash) types.Hash {
	obj := s.objects[addr]
	if obj == nil {
		return types.Hash{}
	}
	if val, ok := obj.dirtyStorage[slot]; ok {
		return val
	}
	return obj.committedStorage[slot]
}

// GetOriginalStorage returns the value of slot as of the start of the
// current transaction, for EIP-2200/EIP-3529 gas accounting.
func (s *MemoryState) GetOriginalStorage(addr types.Address, slot types.Hash) types.Hash {
	if obj := s.objects[addr]; obj != nil {
		return obj.committedStorage[slot]
	}
	return types.Hash{}
}

func (s *MemoryState) SetStorage(addr types.Address, slot, value types.Hash) {
	obj := s.getOrNewObject(addr)
	prevDirty, prevExists := obj.dirtyStorage[slot]
	var prev types.Hash
	if prevExists {
		prev = prevDirty
	} else {
		prev = obj.committedStorage[slot]
	}
	s.journal.append(storageChange{addr: addr, key: slot, prev: prev, prevExists: prevExists})
	obj.dirtyStorage[slot] = value
}

// --- Transient storage (EIP-1153) ---

func (s *MemoryState) GetTransientStorage(addr types.Address, slot types.Hash) types.Hash {
	if slots, ok := s.transientStorage[addr]; ok {
		return slots[slot]
	}
	return types.Hash{}
}

func (s *MemoryState) SetTransientStorage(addr types.Address, slot, value types.Hash) {
	prev := s.GetTransientStorage(addr, slot)
	s.journal.append(transientStorageChange{addr: addr, key: slot, prev: prev})
	if _, ok := s.transientStorage[addr]; !ok {
		s.transientStorage[addr] = make(map[types.Hash]types.Hash)
	}
	s.transientStorage[addr][slot] = value
}

// --- EIP-2929 warm/cold access ---

func (s *MemoryState) IsAddressWarm(addr types.Address) bool {
	return s.accessList.containsAddress(addr)
}

// WarmAddress marks addr as warm. Returns true if the address was cold
// (first access this transaction).
func (s *MemoryState) WarmAddress(addr types.Address) bool {
	wasPresent := s.accessList.addAddress(addr)
	if !wasPresent {
		s.journal.append(accessListAddAccountChange{addr: addr})
	}
	return !wasPresent
}

func (s *MemoryState) IsSlotWarm(addr types.Address, slot types.Hash) bool {
	_, slotOk := s.accessList.containsSlot(addr, slot)
	return slotOk
}

// WarmSlot marks (addr, slot) as warm. Returns true if the slot was cold.
func (s *MemoryState) WarmSlot(addr types.Address, slot types.Hash) bool {
	addrPresent, slotPresent := s.accessList.addSlot(addr, slot)
	if !addrPresent {
		s.journal.append(accessListAddAccountChange{addr: addr})
	}
	if !slotPresent {
		s.journal.append(accessListAddSlotChange{addr: addr, slot: slot})
	}
	return !slotPresent
}

// --- Self-destruct ---

func (s *MemoryState) SelfDestruct(addr types.Address) {
	obj := s.objects[addr]
	if obj == nil {
		return
	}
	s.journal.append(selfDestructChange{
		addr:           addr,
		prevDestructed: obj.selfDestructed,
		prevBalance:    obj.account.Balance.Clone(),
	})
	obj.selfDestructed = true
	obj.account.Balance = uint256.Zero()
}

func (s *MemoryState) HasSelfDestructed(addr types.Address) bool {
	if obj := s.objects[addr]; obj != nil {
		return obj.selfDestructed
	}
	return false
}

// --- Refund counter ---

func (s *MemoryState) AddRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	s.refund += gas
}

func (s *MemoryState) SubRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	if gas > s.refund {
		panic("state: refund counter below zero")
	}
	s.refund -= gas
}

func (s *MemoryState) GetRefund() uint64 {
	return s.refund
}

// --- Logs ---

func (s *MemoryState) AddLog(log *types.Log) {
	log.TxHash = s.txHash
	log.TxIndex = uint(s.txIndex)
	s.journal.append(logChange{txHash: s.txHash, prevLen: len(s.logs[s.txHash])})
	s.logs[s.txHash] = append(s.logs[s.txHash], log)
}

func (s *MemoryState) GetLogs(txHash types.Hash) []*types.Log {
	return s.logs[txHash]
}

func (s *MemoryState) SetTxContext(txHash types.Hash, txIndex int) {
	s.txHash = txHash
	s.txIndex = txIndex
}

// --- Transaction boundary ---

// BeginTransaction flushes the previous transaction's dirty storage into
// the committed layer (so GetOriginalStorage reflects it), removes the
// accounts that self-destructed in it, clears the EIP-2929 warm sets,
// resets the refund counter and clears transient storage (EIP-1153).
// It does not touch the revert journal: call frames
// within the transaction still use Snapshot/RevertToSnapshot.
func (s *MemoryState) BeginTransaction() {
	for addr, obj := range s.objects {
		if obj.selfDestructed {
			delete(s.objects, addr)
			continue
		}
		for key, val := range obj.dirtyStorage {
			if val == (types.Hash{}) {
				delete(obj.committedStorage, key)
			} else {
				obj.committedStorage[key] = val
			}
		}
		obj.dirtyStorage = make(map[types.Hash]types.Hash)
	}
	s.accessList = newAccessList()
	s.refund = 0
	s.transientStorage = make(map[types.Address]map[types.Hash]types.Hash)
	s.journal.reset()
}

// --- Snapshot/revert ---

func (s *MemoryState) Snapshot() int {
	return s.journal.snapshot()
}

func (s *MemoryState) RevertToSnapshot(id int) {
	s.journal.revertToSnapshot(id, s)
}

// --- State root ---

// rlpAccount is the RLP-serializable form of an account, per the Yellow
// Paper: [nonce, balance, storageRoot, codeHash].
type rlpAccount struct {
	Nonce    uint64
	Balance  *uint256.Int
	Root     types.Hash
	CodeHash types.Hash
}

func mergeStorage(obj *stateObject) map[types.Hash]types.Hash {
	merged := make(map[types.Hash]types.Hash, len(obj.committedStorage)+len(obj.dirtyStorage))
	for k, v := range obj.committedStorage {
		merged[k] = v
	}
	for k, v := range obj.dirtyStorage {
		if v == (types.Hash{}) {
			delete(merged, k)
		} else {
			merged[k] = v
		}
	}
	return merged
}

// computeStorageRoot builds a storage trie from an account's merged
// storage, keyed by keccak256(slot) with RLP-encoded, leading-zero-trimmed
// values, and returns its root hash.
func computeStorageRoot(obj *stateObject) types.Hash {
	merged := mergeStorage(obj)
	if len(merged) == 0 {
		return types.EmptyRootHash
	}
	storageTrie := trie.New()
	for slot, val := range merged {
		hashedSlot := crypto.Keccak256(slot[:])
		trimmed := trimLeadingZeros(val[:])
		encoded, err := rlp.EncodeToBytes(trimmed)
		if err != nil {
			continue
		}
		storageTrie.Put(hashedSlot, encoded)
	}
	return storageTrie.Hash()
}

func trimLeadingZeros(b []byte) []byte {
	for i, v := range b {
		if v != 0 {
			return b[i:]
		}
	}
	return []byte{}
}

// StateRoot flushes dirty storage, builds the account state trie (keyed by
// keccak256(address), valued by RLP-encoded account) and returns its root.
// Self-destructed accounts are omitted. Accounts left empty per EIP-161
// are also omitted, matching the post-Spurious-Dragon state-clearing rule.
func (s *MemoryState) StateRoot() (types.Hash, error) {
	for _, obj := range s.objects {
		for key, val := range obj.dirtyStorage {
			if val == (types.Hash{}) {
				delete(obj.committedStorage, key)
			} else {
				obj.committedStorage[key] = val
			}
		}
		obj.dirtyStorage = make(map[types.Hash]types.Hash)
	}

	addrs := make([]types.Address, 0, len(s.objects))
	for addr, obj := range s.objects {
		if obj.selfDestructed || obj.account.IsEmpty() {
			continue
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return types.EmptyRootHash, nil
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Hex() < addrs[j].Hex() })

	stateTrie := trie.New()
	for _, addr := range addrs {
		obj := s.objects[addr]
		obj.account.Root = computeStorageRoot(obj)

		acc := rlpAccount{
			Nonce:    obj.account.Nonce,
			Balance:  obj.account.Balance,
			Root:     obj.account.Root,
			CodeHash: obj.account.CodeHash,
		}
		encoded, err := rlp.EncodeToBytes(acc)
		if err != nil {
			return types.Hash{}, err
		}
		hashedAddr := crypto.Keccak256(addr[:])
		stateTrie.Put(hashedAddr, encoded)
	}
	return stateTrie.Hash(), nil
}

// Verify interface compliance at compile time.
var _ Access = (*MemoryState)(nil)
