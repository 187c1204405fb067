package txn

import (
	"encoding/hex"
	"fmt"

	"github.com/opendlt/aptos-toolkit/types"
)

// Sign signs the canonical bytes of raw with the default codec and wraps the result
// in a submission envelope
func Sign(signer Signer, raw *types.RawTransaction) (*types.SignedTransaction, error) {
	return SignWithCodec(DefaultCodec(), signer, raw)
}

// SignWithCodec is Sign with an explicit codec
func SignWithCodec(codec Codec, signer Signer, raw *types.RawTransaction) (*types.SignedTransaction, error) {
	if signer == nil {
		return nil, fmt.Errorf("signer cannot be nil")
	}
	if raw == nil {
		return nil, fmt.Errorf("raw transaction cannot be nil")
	}

	msg, err := SigningMessage(codec, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}

	sig, err := signer.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return &types.SignedTransaction{
		Transaction: raw,
		Signature: types.Signature{
			Type:      types.Ed25519SignatureType,
			PublicKey: "0x" + signer.PublicKeyHex(),
			Signature: "0x" + hex.EncodeToString(sig),
		},
	}, nil
}
