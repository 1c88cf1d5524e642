// SPDX-License-Identifier: LGPL-3.0-or-later

package crypto

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/hkdf"
)

// conversationSalt is the fixed HKDF salt distinguishing conversation-key
// derivation from other uses of the same ECDH shared point.
var conversationSalt = []byte("nip44-v2")

// ConversationKey derives the 32-byte symmetric key shared between ourSecret
// and theirPublic. It is symmetric in its two arguments by construction of
// ECDH: ConversationKey(a, B) == ConversationKey(b, A) for keypairs (a, A)
// and (b, B).
func ConversationKey(ours *KeyPair, theirPublic [PubKeySize]byte) ([]byte, error) {
	theirPub, err := liftX(theirPublic)
	if err != nil {
		return nil, err
	}

	x := sharedX(ours.secret, theirPub)

	prk := hkdf.Extract(sha256.New, x, conversationSalt)
	out := make([]byte, len(prk))
	copy(out, prk)
	return out, nil
}

// sharedX computes the x-coordinate of priv*Pub, the raw ECDH shared point.
func sharedX(priv *secp256k1.PrivateKey, pub *secp256k1.PublicKey) []byte {
	var point secp256k1.JacobianPoint
	pub.AsJacobian(&point)

	var result secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&priv.Key, &point, &result)
	result.ToAffine()

	x := result.X.Bytes()
	return x[:]
}
