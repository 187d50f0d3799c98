package lending

import (
	"crosslend/crypto"
	"crosslend/native/common"
)

// Authority issues capabilities for the configured system operator.
type Authority struct {
	operator crypto.Address
}

func NewAuthority(operator crypto.Address) *Authority {
	return &Authority{operator: operator}
}

func (a *Authority) Operator() crypto.Address { return a.operator }

// OperatorCapability proves the holder was authorised as the system
// operator. The zero value is never valid.
type OperatorCapability struct {
	issuer   *Authority
	operator crypto.Address
}

// Operator returns the identity the capability was issued to.
func (c OperatorCapability) Operator() crypto.Address { return c.operator }

// Authorize returns a capability when signer is the configured operator.
func (a *Authority) Authorize(signer crypto.Address) (OperatorCapability, error) {
	if signer.IsZero() {
		return OperatorCapability{}, common.ErrInvalidSigner
	}
	if a == nil || a.operator.IsZero() || signer != a.operator {
		return OperatorCapability{}, common.ErrInvalidSystem
	}
	return OperatorCapability{issuer: a, operator: signer}, nil
}

func (a *Authority) verify(c OperatorCapability) error {
	if a == nil || c.issuer != a || c.operator != a.operator {
		return common.ErrInvalidSystem
	}
	return nil
}
