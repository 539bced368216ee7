package casper

import (
	"bytes"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/crypto/blake2b"
)

// blake2b256 is the multihash code of 256-bit BLAKE2b.
const blake2b256 = multihash.BLAKE2B_MIN + 31

// identify derives the content identifier of a message from its canonical
// encoding. Height is derived from the other fields and is not encoded.
func (m *Message) identify() (cid.Cid, error) {
	var buf bytes.Buffer
	if err := m.marshalForIdentity(&buf); err != nil {
		return cid.Undef, err
	}
	digest := blake2b.Sum256(buf.Bytes())
	mh, err := multihash.Encode(digest[:], blake2b256)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.DagCBOR, mh), nil
}

// marshalForIdentity writes the message as the CBOR tuple
// [protocol, sender, sequence, estimate, [[sender, id]...]] with the
// justification ordered by sender.
func (m *Message) marshalForIdentity(w io.Writer) error {
	cw := cbg.NewCborWriter(w)

	if _, err := cw.Write([]byte{133}); err != nil {
		return err
	}

	// t.protocol (string)
	name := m.protocol.Name()
	if err := cw.WriteMajorTypeHeader(cbg.MajTextString, uint64(len(name))); err != nil {
		return err
	}
	if _, err := io.WriteString(cw, name); err != nil {
		return err
	}

	// t.sender (casper.ValidatorID) (uint64)
	if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, uint64(m.sender)); err != nil {
		return err
	}

	// t.sequenceNumber (uint64)
	if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, m.sequenceNumber); err != nil {
		return err
	}

	// t.estimate ([]uint8)
	var estimate bytes.Buffer
	if err := m.estimate.MarshalForIdentity(&estimate); err != nil {
		return err
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajByteString, uint64(estimate.Len())); err != nil {
		return err
	}
	if _, err := cw.Write(estimate.Bytes()); err != nil {
		return err
	}

	// t.justification ([][]any)
	cited := m.justification.Messages()
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, uint64(len(cited))); err != nil {
		return err
	}
	for _, c := range cited {
		if _, err := cw.Write([]byte{130}); err != nil {
			return err
		}
		if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, uint64(c.sender)); err != nil {
			return err
		}
		id := c.id.Bytes()
		if err := cw.WriteMajorTypeHeader(cbg.MajByteString, uint64(len(id))); err != nil {
			return err
		}
		if _, err := cw.Write(id); err != nil {
			return err
		}
	}
	return nil
}
