package modules

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/WinterParker/libcoin/crypto"
)

// A little-endian varint/varstr/container codec, in the style of Bitcoin
// Core's CompactSize/string/vector encoding. Every on-disk wallet record is
// built out of these primitives, so its invariants are part of this module
// even though the tx/block serializer itself is assumed to already exist
// elsewhere in the node.

// ErrTruncated is returned when a decode runs out of input before it
// has read a complete value.
var ErrTruncated = errors.New("truncated input")

// ErrVarintOversize is returned when a varint length prefix exceeds the
// caller-supplied bound (used by ReadVarString/ReadContainer to reject
// absurd length prefixes before allocating).
var ErrVarintOversize = errors.New("varint length exceeds remaining input")

// WriteVarInt writes v as a space-optimized size tag: a single byte if
// v < 0xFD, else a marker byte (0xFD/0xFE/0xFF) followed by the value
// as a fixed-width 2/4/8-byte little-endian integer.
func WriteVarInt(w io.Writer, v uint64) error {
	switch {
	case v < 0xFD:
		_, err := w.Write([]byte{byte(v)})
		return err
	case v <= 0xFFFF:
		var buf [3]byte
		buf[0] = 0xFD
		binary.LittleEndian.PutUint16(buf[1:], uint16(v))
		_, err := w.Write(buf[:])
		return err
	case v <= 0xFFFFFFFF:
		var buf [5]byte
		buf[0] = 0xFE
		binary.LittleEndian.PutUint32(buf[1:], uint32(v))
		_, err := w.Write(buf[:])
		return err
	default:
		var buf [9]byte
		buf[0] = 0xFF
		binary.LittleEndian.PutUint64(buf[1:], v)
		_, err := w.Write(buf[:])
		return err
	}
}

// ReadVarInt reads a value written by WriteVarInt.
func ReadVarInt(r io.Reader) (uint64, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, ErrTruncated
	}
	switch b[0] {
	case 0xFD:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, ErrTruncated
		}
		return uint64(binary.LittleEndian.Uint16(buf[:])), nil
	case 0xFE:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, ErrTruncated
		}
		return uint64(binary.LittleEndian.Uint32(buf[:])), nil
	case 0xFF:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, ErrTruncated
		}
		return binary.LittleEndian.Uint64(buf[:]), nil
	default:
		return uint64(b[0]), nil
	}
}

// WriteVarString writes s as a varint length prefix followed by its
// raw bytes.
func WriteVarString(w io.Writer, s []byte) error {
	if err := WriteVarInt(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := w.Write(s)
	return err
}

// ReadVarString reads a value written by WriteVarString. maxLen bounds
// the length prefix so a corrupt record can't trigger an unbounded
// allocation.
func ReadVarString(r io.Reader, maxLen uint64) ([]byte, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > maxLen {
		return nil, ErrVarintOversize
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ErrTruncated
	}
	return buf, nil
}

// WriteContainer writes n elements as a varint count followed by n
// calls to encodeElem, one per element, back to back.
func WriteContainer(w io.Writer, n int, encodeElem func(io.Writer, int) error) error {
	if err := WriteVarInt(w, uint64(n)); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := encodeElem(w, i); err != nil {
			return err
		}
	}
	return nil
}

// ReadContainer reads a value written by WriteContainer, calling
// decodeElem once per encoded element. maxElems bounds the count prefix.
func ReadContainer(r io.Reader, maxElems uint64, decodeElem func(io.Reader) error) (int, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return 0, err
	}
	if n > maxElems {
		return 0, ErrVarintOversize
	}
	for i := uint64(0); i < n; i++ {
		if err := decodeElem(r); err != nil {
			return 0, err
		}
	}
	return int(n), nil
}

// WriteUint32/64 and WriteInt64 write fixed-width little-endian
// primitives; Read counterparts mirror them.

func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func WriteInt64(w io.Writer, v int64) error {
	return WriteUint64(w, uint64(v))
}

func ReadInt64(r io.Reader) (int64, error) {
	v, err := ReadUint64(r)
	return int64(v), err
}

func writeHash(w io.Writer, h crypto.Hash256) error {
	_, err := w.Write(h[:])
	return err
}

func readHash(r io.Reader) (crypto.Hash256, error) {
	var h crypto.Hash256
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return h, ErrTruncated
	}
	return h, nil
}

// Encode returns tx's canonical binary encoding: version, then the
// input and output vectors via WriteContainer, then the locktime.
func (tx Transaction) Encode() []byte {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	_ = WriteUint32(w, tx.Version)
	_ = WriteContainer(w, len(tx.Inputs), func(w io.Writer, i int) error {
		in := tx.Inputs[i]
		if err := writeHash(w, in.PrevOut.Hash); err != nil {
			return err
		}
		if err := WriteUint32(w, in.PrevOut.Index); err != nil {
			return err
		}
		if err := WriteVarString(w, in.ScriptSig); err != nil {
			return err
		}
		return WriteUint32(w, in.Sequence)
	})
	_ = WriteContainer(w, len(tx.Outputs), func(w io.Writer, i int) error {
		out := tx.Outputs[i]
		if err := WriteInt64(w, out.Value); err != nil {
			return err
		}
		_, err := w.Write(out.Address.Bytes())
		return err
	})
	_ = WriteUint32(w, tx.LockTime)
	_ = w.Flush()
	return buf.Bytes()
}

// DecodeTransaction parses the encoding produced by Transaction.Encode.
func DecodeTransaction(r io.Reader) (Transaction, error) {
	var tx Transaction
	var err error
	if tx.Version, err = ReadUint32(r); err != nil {
		return Transaction{}, err
	}
	_, err = ReadContainer(r, 1<<20, func(r io.Reader) error {
		var in TxIn
		if in.PrevOut.Hash, err = readHash(r); err != nil {
			return err
		}
		if in.PrevOut.Index, err = ReadUint32(r); err != nil {
			return err
		}
		if in.ScriptSig, err = ReadVarString(r, 1<<16); err != nil {
			return err
		}
		if in.Sequence, err = ReadUint32(r); err != nil {
			return err
		}
		tx.Inputs = append(tx.Inputs, in)
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	_, err = ReadContainer(r, 1<<20, func(r io.Reader) error {
		var out TxOut
		if out.Value, err = ReadInt64(r); err != nil {
			return err
		}
		addrBytes := make([]byte, crypto.AddressSize)
		if _, err := io.ReadFull(r, addrBytes); err != nil {
			return ErrTruncated
		}
		addr, perr := crypto.ParseAddress(addrBytes)
		if perr != nil {
			return perr
		}
		out.Address = addr
		tx.Outputs = append(tx.Outputs, out)
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	if tx.LockTime, err = ReadUint32(r); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}
