package starkattest

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	starkcurve "github.com/consensys/gnark-crypto/ecc/stark-curve"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/ecdsa"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fr"
)

var (
	curveOrder = fr.Modulus()

	// r, w and message hashes must stay below 2^251.
	signatureBound = new(big.Int).Lsh(big.NewInt(1), 251)
)

var errSignatureBound = errors.New("starkattest: message hash must be below 2^251")

// maxSignAttempts bounds the re-sign loop. Each attempt lands outside
// [1, 2^251) with probability about 2^-4.
const maxSignAttempts = 64

// KeyPair is a Stark curve private key together with its public point.
type KeyPair struct {
	signer ecdsa.PrivateKey
}

// NewKeyPair derives the key pair for a hex-encoded private key.
func NewKeyPair(privateKeyHex string) (*KeyPair, error) {
	d, ok := parseBig(privateKeyHex)
	if !ok {
		return nil, fmt.Errorf("%w: not a hex number", ErrInvalidPrivateKey)
	}
	return NewKeyPairFromScalar(d)
}

// NewKeyPairFromScalar derives the key pair for the private scalar d.
func NewKeyPairFromScalar(d *big.Int) (*KeyPair, error) {
	if d.Sign() <= 0 || d.Cmp(curveOrder) >= 0 {
		return nil, fmt.Errorf("%w: scalar outside [1, n)", ErrInvalidPrivateKey)
	}

	var public starkcurve.G1Affine
	public.ScalarMultiplicationBase(d)

	// ecdsa.PrivateKey keeps its scalar unexported; its binary form is the
	// compressed public point followed by the big-endian scalar.
	pub := public.Bytes()
	buf := append(pub[:], d.FillBytes(make([]byte, fr.Bytes))...)

	kp := new(KeyPair)
	if _, err := kp.signer.SetBytes(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return kp, nil
}

// PublicKey returns the stark key: the x coordinate of the public point.
func (k *KeyPair) PublicKey() *felt.Felt {
	return new(felt.Felt).SetBigInt(k.signer.PublicKey.A.X.BigInt(new(big.Int)))
}

// Sign produces a Stark ECDSA signature (r, s) over msgHash. Nonces are
// random, so two signatures over the same hash differ. Signatures whose r or
// s^-1 fall outside [1, 2^251) are drawn again, as Starknet accounts reject
// them.
func (k *KeyPair) Sign(msgHash *felt.Felt) (r, s *felt.Felt, err error) {
	if FeltToBig(msgHash).Cmp(signatureBound) >= 0 {
		return nil, nil, errSignatureBound
	}
	msg := msgHash.Bytes()

	for range maxSignAttempts {
		sig, err := k.signer.Sign(msg[:], nil)
		if err != nil {
			return nil, nil, fmt.Errorf("starkattest: sign: %w", err)
		}
		rb := new(big.Int).SetBytes(sig[:fr.Bytes])
		sb := new(big.Int).SetBytes(sig[fr.Bytes:])
		if rb.Cmp(signatureBound) >= 0 {
			continue
		}
		if w := new(big.Int).ModInverse(sb, curveOrder); w == nil || w.Cmp(signatureBound) >= 0 {
			continue
		}
		return new(felt.Felt).SetBigInt(rb), new(felt.Felt).SetBigInt(sb), nil
	}
	return nil, nil, errors.New("starkattest: sign: no signature within bounds")
}

// Verify checks a signature produced for msgHash against the stark key.
func (k *KeyPair) Verify(msgHash, r, s *felt.Felt) bool {
	if FeltToBig(msgHash).Cmp(signatureBound) >= 0 {
		return false
	}
	rb, sb := FeltToBig(r), FeltToBig(s)
	if rb.Sign() == 0 || rb.Cmp(signatureBound) >= 0 {
		return false
	}
	if sb.Sign() == 0 || sb.Cmp(curveOrder) >= 0 {
		return false
	}
	if w := new(big.Int).ModInverse(sb, curveOrder); w == nil || w.Cmp(signatureBound) >= 0 {
		return false
	}

	pub := crypto.NewPublicKey(k.PublicKey())
	ok, err := pub.Verify(&crypto.Signature{R: *r, S: *s}, msgHash)
	return err == nil && ok
}
