// Package programerr defines the error taxonomy shared by the gating program
// and the ledger host that runs it.
//
// Two families exist:
//   - Custom errors carry a numeric code owned by the gating program. The codes
//     are part of the wire contract and must never be renumbered.
//   - Builtin errors are raised by the host runtime (or by the program using a
//     host-defined meaning, e.g. checked counter arithmetic).
//
// All values are sentinels; callers compare with errors.Is and add context with
// fmt.Errorf("...: %w", err).
package programerr

import (
	"errors"
	"fmt"
)

// Code is a custom program error code.
type Code uint32

// Custom error codes. Order is the wire contract.
const (
	CodeInvalidInstruction Code = iota
	CodeInvalidAuthority
	CodeAccountBlocked
	CodeNotEnoughAccounts
	CodeInvalidAccountData
	CodeUninitializedAccount
	CodeInvalidSystemProgram
	CodeInvalidConfigAccount
	CodeAccountNotWritable
	CodeInvalidMint
	CodeInvalidExtraMetasAccount
	CodeImmutableOwnerExtensionMissing
	CodeInvalidData
	CodeInvalidMintConfig
	CodeListNotEmpty
)

// Error is a program or host failure.
type Error struct {
	name   string
	code   Code
	custom bool
}

func (e *Error) Error() string {
	if e.custom {
		return fmt.Sprintf("custom program error 0x%x: %s", uint32(e.code), e.name)
	}
	return e.name
}

// Name returns the symbolic name of the error, e.g. "AccountBlocked".
func (e *Error) Name() string { return e.name }

// Custom reports whether the error carries a program-owned code.
func (e *Error) Custom() bool { return e.custom }

// Code returns the custom code. Only meaningful when Custom is true.
func (e *Error) Code() Code { return e.code }

func custom(code Code, name string) *Error {
	return &Error{name: name, code: code, custom: true}
}

func builtin(name string) *Error {
	return &Error{name: name}
}

// Custom program errors.
var (
	ErrInvalidInstruction             = custom(CodeInvalidInstruction, "InvalidInstruction")
	ErrInvalidAuthority               = custom(CodeInvalidAuthority, "InvalidAuthority")
	ErrAccountBlocked                 = custom(CodeAccountBlocked, "AccountBlocked")
	ErrNotEnoughAccounts              = custom(CodeNotEnoughAccounts, "NotEnoughAccounts")
	ErrInvalidAccountData             = custom(CodeInvalidAccountData, "InvalidAccountData")
	ErrUninitializedAccount           = custom(CodeUninitializedAccount, "UninitializedAccount")
	ErrInvalidSystemProgram           = custom(CodeInvalidSystemProgram, "InvalidSystemProgram")
	ErrInvalidConfigAccount           = custom(CodeInvalidConfigAccount, "InvalidConfigAccount")
	ErrAccountNotWritable             = custom(CodeAccountNotWritable, "AccountNotWritable")
	ErrInvalidMint                    = custom(CodeInvalidMint, "InvalidMint")
	ErrInvalidExtraMetasAccount       = custom(CodeInvalidExtraMetasAccount, "InvalidExtraMetasAccount")
	ErrImmutableOwnerExtensionMissing = custom(CodeImmutableOwnerExtensionMissing, "ImmutableOwnerExtensionMissing")
	ErrInvalidData                    = custom(CodeInvalidData, "InvalidData")
	ErrInvalidMintConfig              = custom(CodeInvalidMintConfig, "InvalidMintConfig")
	ErrListNotEmpty                   = custom(CodeListNotEmpty, "ListNotEmpty")
)

// Builtin host errors.
var (
	ErrInvalidInstructionData   = builtin("InvalidInstructionData")
	ErrArithmeticOverflow       = builtin("ArithmeticOverflow")
	ErrAccountAlreadyInUse      = builtin("AccountAlreadyInUse")
	ErrInsufficientFunds        = builtin("InsufficientFunds")
	ErrMissingRequiredSignature = builtin("MissingRequiredSignature")
	ErrExternalAccountModified  = builtin("ExternalAccountModified")
	ErrReadonlyAccountModified  = builtin("ReadonlyAccountModified")
	ErrUnbalancedInstruction    = builtin("UnbalancedInstruction")
	ErrAccountNotRentExempt     = builtin("AccountNotRentExempt")
	ErrIncorrectProgramID       = builtin("IncorrectProgramId")
	ErrInvalidArgument          = builtin("InvalidArgument")
)

var byCode = map[Code]*Error{}

func init() {
	for _, e := range []*Error{
		ErrInvalidInstruction, ErrInvalidAuthority, ErrAccountBlocked, ErrNotEnoughAccounts,
		ErrInvalidAccountData, ErrUninitializedAccount, ErrInvalidSystemProgram,
		ErrInvalidConfigAccount, ErrAccountNotWritable, ErrInvalidMint,
		ErrInvalidExtraMetasAccount, ErrImmutableOwnerExtensionMissing, ErrInvalidData,
		ErrInvalidMintConfig, ErrListNotEmpty,
	} {
		byCode[e.code] = e
	}
}

// FromCode returns the custom error registered for code.
func FromCode(code Code) (*Error, bool) {
	e, ok := byCode[code]
	return e, ok
}

// As extracts the program error at the root of err's chain.
func As(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsPolicyDenial reports whether err is an intentional deny verdict rather
// than a malfunction.
func IsPolicyDenial(err error) bool {
	return errors.Is(err, ErrAccountBlocked)
}
