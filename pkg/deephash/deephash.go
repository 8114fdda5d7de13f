// Package deephash implements the canonical tree hash used to bind a
// receipt's fields to a signature. It is a pure function over a tree of
// byte chunks yielding a 48-byte SHA-384 digest — the same construction
// both the bundler and the validator use so a signature computed by one
// side verifies identically on the other.
package deephash

import (
	"crypto/sha512"
	"strconv"
)

// Domain prefixes every signing site prepends to its chunk list.
const (
	DomainBundlr    = "Bundlr"
	DomainValidator = "Validator"
)

// oneAsBuffer is the literal ASCII byte '1', included as the second chunk
// of every signed list per the wire format both sides agree on.
var oneAsBuffer = []byte("1")

// Chunk is a leaf node: a raw byte string.
type Chunk []byte

// Chunks is an ordered list of child nodes (chunks or nested lists).
type Chunks []Node

// Node is either a Chunk (leaf) or Chunks (list).
type Node interface {
	isNode()
}

func (Chunk) isNode()  {}
func (Chunks) isNode() {}

// Hash computes the DeepHash digest of node.
func Hash(node Node) [48]byte {
	switch n := node.(type) {
	case Chunk:
		return leaf(n)
	case Chunks:
		return list(n)
	default:
		panic("deephash: unknown node type")
	}
}

func tag(label string, length int) [48]byte {
	return sha512.Sum384(append([]byte(label), []byte(strconv.Itoa(length))...))
}

func leaf(data []byte) [48]byte {
	t := tag("blob", len(data))
	body := sha512.Sum384(data)
	return sha512.Sum384(append(t[:], body[:]...))
}

func list(children Chunks) [48]byte {
	acc := tag("list", len(children))
	for _, child := range children {
		h := Hash(child)
		acc = sha512.Sum384(append(acc[:], h[:]...))
	}
	return acc
}

// ReceiptChunks builds the canonical chunk list the bundler signs:
// [domain, "1", tx_id, size, fee, currency, block, validator_address].
//
// size, fee and block are taken as their decimal-ASCII wire representation
// directly rather than parsed into a Go integer: fee in particular is an
// arbitrary-precision token amount (u128 on the wire) that would lose
// precision in an int64, and DeepHash only ever consumes its ASCII bytes.
func ReceiptChunks(domain, txID, size, fee, currency, block, validatorAddress string) Chunks {
	return Chunks{
		Chunk(domain),
		Chunk(oneAsBuffer),
		Chunk(txID),
		Chunk(size),
		Chunk(fee),
		Chunk(currency),
		Chunk(block),
		Chunk(validatorAddress),
	}
}

// ValidatorReceiptChunks extends ReceiptChunks with the bundler's address
// appended, used for the validator's own counter-signature.
func ValidatorReceiptChunks(txID, size, fee, currency, block, validatorAddress, bundlerAddress string) Chunks {
	base := ReceiptChunks(DomainValidator, txID, size, fee, currency, block, validatorAddress)
	return append(base, Chunk(bundlerAddress))
}
