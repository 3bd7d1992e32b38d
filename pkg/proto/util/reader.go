package util

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/embermc/ember/pkg/profile"
	"github.com/embermc/ember/pkg/util/uuid"
)

const (
	DefaultMaxStringSize = 65536 // 64KiB
	maxVarIntBytes       = 5
)

func ReadString(rd io.Reader) (string, error) {
	return ReadStringMax(rd, DefaultMaxStringSize)
}

func ReadStringMax(rd io.Reader, max int) (string, error) {
	length, err := ReadVarInt(rd)
	if err != nil {
		return "", err
	}
	if length < 0 {
		return "", errors.New("length of string must not be negative")
	}
	if length > max*4 { // UTF-8 uses up to 4 bytes per char
		return "", fmt.Errorf("bad string length (got %d, max %d)", length, max)
	}
	str := make([]byte, length)
	_, err = io.ReadFull(rd, str)
	return string(str), err
}

func ReadVarInt(rd io.Reader) (result int, err error) {
	var numRead uint
	var b byte
	for {
		b, err = ReadByte(rd)
		if err != nil {
			return 0, err
		}
		result |= int(b&0x7F) << (7 * numRead)
		numRead++
		if numRead > maxVarIntBytes {
			return 0, errors.New("varint is too big")
		}
		if b&0x80 == 0 {
			return int(int32(result)), nil
		}
	}
}

func ReadBool(rd io.Reader) (bool, error) {
	b, err := ReadByte(rd)
	return b != 0, err
}

func ReadByte(rd io.Reader) (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(rd, b[:1])
	return b[0], err
}

func ReadUint8(rd io.Reader) (uint8, error) {
	return ReadByte(rd)
}

func ReadUint16(rd io.Reader) (uint16, error) {
	var b [2]byte
	_, err := io.ReadFull(rd, b[:2])
	return binary.BigEndian.Uint16(b[:2]), err
}

func ReadUint64(rd io.Reader) (uint64, error) {
	var b [8]byte
	_, err := io.ReadFull(rd, b[:8])
	return binary.BigEndian.Uint64(b[:8]), err
}

// ReadBytes reads a varint length prefixed byte slice.
func ReadBytes(rd io.Reader) ([]byte, error) {
	return ReadBytesLen(rd, DefaultMaxStringSize)
}

func ReadBytesLen(rd io.Reader, maxLength int) ([]byte, error) {
	length, err := ReadVarInt(rd)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, errors.New("length of bytes must not be negative")
	}
	if length > maxLength {
		return nil, fmt.Errorf("bad bytes length (got %d, max %d)", length, maxLength)
	}
	b := make([]byte, length)
	_, err = io.ReadFull(rd, b)
	return b, err
}

// ReadRawBytes reads the remaining bytes with no length prefix.
func ReadRawBytes(rd io.Reader) ([]byte, error) {
	return io.ReadAll(rd)
}

func ReadUUID(rd io.Reader) (id uuid.UUID, err error) {
	b := make([]byte, 16)
	if _, err = io.ReadFull(rd, b); err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(b)
}

// ReadProperties reads the game profile properties
// written by WriteProperties.
func ReadProperties(rd io.Reader) (props []profile.Property, err error) {
	size, err := ReadVarInt(rd)
	if err != nil {
		return nil, err
	}
	props = make([]profile.Property, 0, size)
	for i := 0; i < size; i++ {
		name, err := ReadString(rd)
		if err != nil {
			return nil, err
		}
		value, err := ReadString(rd)
		if err != nil {
			return nil, err
		}
		var signature string
		hasSignature, err := ReadBool(rd)
		if err != nil {
			return nil, err
		}
		if hasSignature {
			signature, err = ReadString(rd)
			if err != nil {
				return nil, err
			}
		}
		props = append(props, profile.Property{
			Name:      name,
			Value:     value,
			Signature: signature,
		})
	}
	return props, nil
}
