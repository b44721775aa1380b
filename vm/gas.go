package vm

// Gas cost constants from the Yellow Paper and its amending EIPs. Names
// follow go-ethereum's conventions where tiers overlap (e.g. GasQuickStep).
const (
	GasQuickStep   uint64 = 2
	GasFastestStep uint64 = 3
	GasFastStep    uint64 = 5
	GasMidStep     uint64 = 8
	GasSlowStep    uint64 = 10
	GasExtStep     uint64 = 20

	KeccakWordGas uint64 = 6
	InitCodeWordGas uint64 = 2

	Keccak256Gas uint64 = 30
	Keccak256WordGas uint64 = 6

	MemoryGas uint64 = 3
	QuadCoeffDiv uint64 = 512

	CopyGas uint64 = 3

	CreateGas uint64 = 32000
	CreateDataGas uint64 = 200
	Create2Gas uint64 = 32000

	CallGasFraction uint64 = 64 // EIP-150: 63/64 rule denominator

	CallValueTransferGas uint64 = 9000
	CallNewAccountGas    uint64 = 25000
	CallStipend          uint64 = 2300

	ExpByteGas      uint64 = 50 // EIP-160
	SelfdestructGas uint64 = 5000

	SstoreSetGas    uint64 = 20000
	SstoreResetGas  uint64 = 5000
	SstoreClearRefund uint64 = 4800 // EIP-3529
	SstoreInitGas      uint64 = 20000
	SstoreInitRefund   uint64 = 19900
	SstoreCleanGas     uint64 = 5000 - 2100
	SstoreCleanRefund  uint64 = 4800

	JumpdestGas uint64 = 1

	LogGas     uint64 = 375
	LogDataGas uint64 = 8
	LogTopicGas uint64 = 375

	SelfdestructRefundGas uint64 = 24000

	// EIP-2929
	ColdAccountAccessCost uint64 = 2600
	ColdSloadCost         uint64 = 2100
	WarmStorageReadCost   uint64 = 100

	// EIP-3529: SELFDESTRUCT no longer refunds gas, and the SSTORE clear
	// refund above supersedes the pre-London constant.
	MaxRefundQuotient uint64 = 5 // EIP-3529: refund capped at gasUsed/5

	// EIP-3860
	MaxInitCodeSize = 2 * 24576

	// EIP-170
	MaxCodeSize = 24576

	// Cancun
	TloadGas       uint64 = WarmStorageReadCost
	TstoreGas      uint64 = WarmStorageReadCost
	MCopyWordGas   uint64 = 3
	BlobHashGas    uint64 = GasFastestStep
	BlobBaseFeeGas uint64 = GasQuickStep
)

// MaxInitCodeSizeForFork returns the max allowed init code length for the
// given fork rules (EIP-3860, Shanghai onward; unlimited before that).
func MaxInitCodeSizeForFork(rules ForkRules) int {
	if !rules.IsShanghai {
		return 1 << 30 // effectively unlimited pre-Shanghai
	}
	return MaxInitCodeSize
}

// MaxCodeSizeForFork returns the max allowed deployed code length for the
// given fork rules (EIP-170, Spurious Dragon onward).
func MaxCodeSizeForFork(rules ForkRules) int {
	if !rules.IsEIP158 {
		return 1 << 30
	}
	return MaxCodeSize
}
