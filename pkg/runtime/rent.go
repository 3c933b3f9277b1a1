package runtime

// AccountStorageOverhead is the per-account byte overhead charged by rent.
const AccountStorageOverhead = 128

// Rent is the ledger's storage pricing.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
}

// DefaultRent mirrors the mainnet schedule.
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: 3480, ExemptionThreshold: 2.0}
}

// MinimumBalance returns the lamports an account of dataLen bytes must hold to
// be exempt from rent collection.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	bytes := uint64(AccountStorageOverhead + dataLen)
	return uint64(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether lamports cover dataLen bytes.
func (r Rent) IsExempt(lamports uint64, dataLen int) bool {
	return lamports >= r.MinimumBalance(dataLen)
}
