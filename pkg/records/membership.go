package records

import "github.com/gagliardetto/solana-go"

// MembershipRecord layout.
const (
	MembershipDiscriminator byte = 0x02
	MembershipLen                = 1 + 32 + 32
)

// MembershipRecord marks wallet as a member of list. Its existence is the
// only information it carries.
type MembershipRecord struct {
	Wallet solana.PublicKey
	List   solana.PublicKey
}

func (*MembershipRecord) Len() int            { return MembershipLen }
func (*MembershipRecord) Discriminator() byte { return MembershipDiscriminator }

func (r *MembershipRecord) decode(data []byte) error {
	copy(r.Wallet[:], data[1:33])
	copy(r.List[:], data[33:65])
	return nil
}

func (r *MembershipRecord) encode(dst []byte) {
	copy(dst[1:33], r.Wallet[:])
	copy(dst[33:65], r.List[:])
}
