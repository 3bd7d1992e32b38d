package util

import (
	"encoding/binary"
	"io"

	"github.com/embermc/ember/pkg/profile"
	"github.com/embermc/ember/pkg/util/uuid"
)

func WriteString(wr io.Writer, val string) error {
	return WriteBytes(wr, []byte(val))
}

func WriteVarInt(wr io.Writer, val int) (err error) {
	uval := uint32(val)
	for uval >= 0x80 {
		err = WriteUint8(wr, byte(uval)|0x80)
		if err != nil {
			return
		}
		uval >>= 7
	}
	err = WriteUint8(wr, byte(uval))
	return
}

func WriteBool(wr io.Writer, val bool) (err error) {
	if val {
		err = WriteUint8(wr, 1)
	} else {
		err = WriteUint8(wr, 0)
	}
	return
}

func WriteUint8(wr io.Writer, val uint8) (err error) {
	var b [1]byte
	b[0] = val
	_, err = wr.Write(b[:1])
	return
}

// equal to WriteUint8
func WriteByte(wr io.Writer, val byte) (err error) {
	return WriteUint8(wr, val)
}

func WriteUint16(wr io.Writer, val uint16) (err error) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:2], val)
	_, err = wr.Write(b[:2])
	return
}

func WriteInt16(wr io.Writer, val int16) error {
	return WriteUint16(wr, uint16(val))
}

func WriteUint32(wr io.Writer, val uint32) (err error) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:4], val)
	_, err = wr.Write(b[:4])
	return
}

func WriteInt(wr io.Writer, val int) error {
	return WriteUint32(wr, uint32(int32(val)))
}

func WriteUint64(wr io.Writer, val uint64) (err error) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:8], val)
	_, err = wr.Write(b[:8])
	return
}

func WriteInt64(wr io.Writer, val int64) error {
	return WriteUint64(wr, uint64(val))
}

// WriteBytes writes a varint length prefix followed by the bytes.
func WriteBytes(wr io.Writer, b []byte) error {
	err := WriteVarInt(wr, len(b))
	if err != nil {
		return err
	}
	_, err = wr.Write(b)
	return err
}

// WriteRawBytes writes a raw stream of bytes with no length prefix.
// Some login-phase packets use this non-standard format.
func WriteRawBytes(wr io.Writer, b []byte) (err error) {
	_, err = wr.Write(b)
	return err
}

func WriteUUID(wr io.Writer, id uuid.UUID) error {
	err := WriteUint64(wr, binary.BigEndian.Uint64(id[:8]))
	if err != nil {
		return err
	}
	return WriteUint64(wr, binary.BigEndian.Uint64(id[8:]))
}

// WriteProperties writes the game profile properties
// in the order they are given.
func WriteProperties(wr io.Writer, properties []profile.Property) error {
	err := WriteVarInt(wr, len(properties))
	if err != nil {
		return err
	}
	for _, p := range properties {
		err = WriteString(wr, p.Name)
		if err != nil {
			return err
		}
		err = WriteString(wr, p.Value)
		if err != nil {
			return err
		}
		hasSignature := len(p.Signature) != 0
		err = WriteBool(wr, hasSignature)
		if err != nil {
			return err
		}
		if hasSignature {
			err = WriteString(wr, p.Signature)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
