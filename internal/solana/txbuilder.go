package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// SystemProgramID is the native system program that owns plain wallets.
const SystemProgramID = "11111111111111111111111111111111"

// systemInstructionTransfer is the system program's transfer instruction index.
const systemInstructionTransfer = 2

// Wallet signs transactions with an ed25519 keypair.
type Wallet struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewWalletFromBase58 parses a base58-encoded 64-byte secret key
// (the format exported by solana-keygen and most wallets).
func NewWalletFromBase58(secret string) (*Wallet, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("secret key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	priv := ed25519.PrivateKey(raw)
	return &Wallet{
		pub:  priv.Public().(ed25519.PublicKey),
		priv: priv,
	}, nil
}

// Address returns the wallet's base58 public key.
func (w *Wallet) Address() string {
	return base58.Encode(w.pub)
}

// AccountMeta describes one account referenced by an instruction.
type AccountMeta struct {
	PubKey   string
	Signer   bool
	Writable bool
}

// Instruction is one program invocation within a transaction.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// NewTransferInstruction builds a system program lamport transfer.
func NewTransferInstruction(from, to string, lamports uint64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemInstructionTransfer)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return Instruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			{PubKey: from, Signer: true, Writable: true},
			{PubKey: to, Writable: true},
		},
		Data: data,
	}
}

// BuildTransaction serializes and signs a legacy-format transaction with
// the wallet as fee payer and sole signer, returning it base64-encoded for
// sendTransaction.
func (w *Wallet) BuildTransaction(blockhash string, instructions ...Instruction) (string, error) {
	if len(instructions) == 0 {
		return "", fmt.Errorf("no instructions")
	}

	keys, err := collectAccountKeys(w.Address(), instructions)
	if err != nil {
		return "", err
	}

	msg, err := serializeMessage(keys, blockhash, instructions)
	if err != nil {
		return "", err
	}

	sig := ed25519.Sign(w.priv, msg)

	var tx bytes.Buffer
	writeCompactU16(&tx, 1) // one signature
	tx.Write(sig)
	tx.Write(msg)

	return base64.StdEncoding.EncodeToString(tx.Bytes()), nil
}

// orderedKeys is the deduplicated account list plus the header counts
// derived from it.
type orderedKeys struct {
	keys                []string
	numSigners          int
	numReadonlyUnsigned int
}

// collectAccountKeys orders accounts as the wire format requires:
// fee payer, then writable non-signers, then readonly non-signers
// (program IDs last among them). Only the fee payer signs.
func collectAccountKeys(feePayer string, instructions []Instruction) (*orderedKeys, error) {
	writable := make(map[string]bool)
	seen := make(map[string]bool)
	var writableKeys, readonlyKeys []string

	add := func(key string, isWritable bool) {
		if key == feePayer {
			return
		}
		if seen[key] {
			if isWritable && !writable[key] {
				// Promote: remove from readonly, append to writable.
				writable[key] = true
				for i, k := range readonlyKeys {
					if k == key {
						readonlyKeys = append(readonlyKeys[:i], readonlyKeys[i+1:]...)
						break
					}
				}
				writableKeys = append(writableKeys, key)
			}
			return
		}
		seen[key] = true
		writable[key] = isWritable
		if isWritable {
			writableKeys = append(writableKeys, key)
		} else {
			readonlyKeys = append(readonlyKeys, key)
		}
	}

	for _, ins := range instructions {
		for _, acc := range ins.Accounts {
			if acc.Signer && acc.PubKey != feePayer {
				return nil, fmt.Errorf("unsupported extra signer %s", acc.PubKey)
			}
			add(acc.PubKey, acc.Writable)
		}
		add(ins.ProgramID, false)
	}

	keys := make([]string, 0, 1+len(writableKeys)+len(readonlyKeys))
	keys = append(keys, feePayer)
	keys = append(keys, writableKeys...)
	keys = append(keys, readonlyKeys...)

	return &orderedKeys{
		keys:                keys,
		numSigners:          1,
		numReadonlyUnsigned: len(readonlyKeys),
	}, nil
}

// serializeMessage writes the legacy message format:
// header | compact keys | blockhash | compact instructions.
func serializeMessage(ok *orderedKeys, blockhash string, instructions []Instruction) ([]byte, error) {
	index := make(map[string]int, len(ok.keys))
	for i, k := range ok.keys {
		index[k] = i
	}

	var msg bytes.Buffer
	msg.WriteByte(byte(ok.numSigners))
	msg.WriteByte(0) // readonly signed accounts
	msg.WriteByte(byte(ok.numReadonlyUnsigned))

	writeCompactU16(&msg, len(ok.keys))
	for _, k := range ok.keys {
		raw, err := base58.Decode(k)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("invalid account key %s", k)
		}
		msg.Write(raw)
	}

	bh, err := base58.Decode(blockhash)
	if err != nil || len(bh) != 32 {
		return nil, fmt.Errorf("invalid blockhash %s", blockhash)
	}
	msg.Write(bh)

	writeCompactU16(&msg, len(instructions))
	for _, ins := range instructions {
		msg.WriteByte(byte(index[ins.ProgramID]))
		writeCompactU16(&msg, len(ins.Accounts))
		for _, acc := range ins.Accounts {
			msg.WriteByte(byte(index[acc.PubKey]))
		}
		writeCompactU16(&msg, len(ins.Data))
		msg.Write(ins.Data)
	}

	return msg.Bytes(), nil
}

// writeCompactU16 writes a shortvec length prefix.
func writeCompactU16(buf *bytes.Buffer, n int) {
	for {
		if n < 0x80 {
			buf.WriteByte(byte(n))
			return
		}
		buf.WriteByte(byte(n&0x7f | 0x80))
		n >>= 7
	}
}

// ValidateAddress checks that an address is a well-formed base58 32-byte key.
func ValidateAddress(address string) error {
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("address must decode to 32 bytes, got %d", len(raw))
	}
	return nil
}

// IsOnCurve reports whether the address is a valid ed25519 point. Plain
// wallets are on-curve; PDAs are not and cannot hold a system account.
func IsOnCurve(address string) bool {
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}
