package modules

import (
	"bytes"
	"io"
	"testing"

	"github.com/WinterParker/libcoin/crypto"
)

func TestVarIntRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 0xFC, 0xFD, 0xFFFF, 0x10000, 0xFFFFFFFF, 0x100000000, ^uint64(0)}
	for _, v := range cases {
		var buf bytes.Buffer
		if err := WriteVarInt(&buf, v); err != nil {
			t.Fatalf("WriteVarInt(%d): %v", v, err)
		}
		got, err := ReadVarInt(&buf)
		if err != nil {
			t.Fatalf("ReadVarInt(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestVarStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	s := []byte("a script blob")
	if err := WriteVarString(&buf, s); err != nil {
		t.Fatal(err)
	}
	got, err := ReadVarString(&buf, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, s) {
		t.Errorf("got %q, want %q", got, s)
	}
}

func TestReadVarStringRejectsOversizeLength(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteVarString(&buf, make([]byte, 100))
	if _, err := ReadVarString(&buf, 10); err != ErrVarintOversize {
		t.Errorf("expected ErrVarintOversize, got %v", err)
	}
}

func TestContainerRoundTrip(t *testing.T) {
	values := []uint32{3, 1, 4, 1, 5, 9}
	var buf bytes.Buffer
	err := WriteContainer(&buf, len(values), func(w io.Writer, i int) error {
		return WriteUint32(w, values[i])
	})
	if err != nil {
		t.Fatal(err)
	}

	var got []uint32
	n, err := ReadContainer(&buf, 100, func(r io.Reader) error {
		v, err := ReadUint32(r)
		if err != nil {
			return err
		}
		got = append(got, v)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != len(values) {
		t.Errorf("n = %d, want %d", n, len(values))
	}
	for i, v := range values {
		if got[i] != v {
			t.Errorf("element %d: got %d, want %d", i, got[i], v)
		}
	}
}

func TestTransactionEncodeDecodeRoundTrip(t *testing.T) {
	pk, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	_ = pk
	addr := crypto.NewAddress(crypto.NetworkMainnet, pub)

	tx := Transaction{
		Version: 1,
		Inputs: []TxIn{
			{PrevOut: OutPoint{Hash: crypto.SHA256([]byte("prev")), Index: 2}, ScriptSig: []byte{1, 2, 3}, Sequence: 0xFFFFFFFF},
		},
		Outputs: []TxOut{
			{Value: 5000, Address: addr},
		},
		LockTime: 600000,
	}

	encoded := tx.Encode()
	decoded, err := DecodeTransaction(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}

	if decoded.Version != tx.Version || decoded.LockTime != tx.LockTime {
		t.Error("version/locktime mismatch")
	}
	if len(decoded.Inputs) != 1 || decoded.Inputs[0].PrevOut != tx.Inputs[0].PrevOut {
		t.Error("input mismatch")
	}
	if len(decoded.Outputs) != 1 || decoded.Outputs[0].Value != tx.Outputs[0].Value || decoded.Outputs[0].Address != addr {
		t.Error("output mismatch")
	}
	if decoded.ID() != tx.ID() {
		t.Error("decoded transaction hashes differently than the original")
	}
}

func TestDecodeTransactionTruncated(t *testing.T) {
	if _, err := DecodeTransaction(bytes.NewReader(nil)); err == nil {
		t.Error("expected an error decoding an empty reader")
	}
}
