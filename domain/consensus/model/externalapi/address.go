package externalapi

import (
	"encoding/hex"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/pkg/errors"
)

// AddressSize is the size in bytes of an account address
const AddressSize = 20

// Address identifies an account in the accounts tree
type Address [AddressSize]byte

// NewAddressFromSlice creates an address out of a byte slice
func NewAddressFromSlice(addressBytes []byte) (Address, error) {
	var address Address
	if len(addressBytes) != AddressSize {
		return address, errors.Errorf("invalid address size. Want: %d, got: %d",
			AddressSize, len(addressBytes))
	}
	copy(address[:], addressBytes)
	return address, nil
}

// String returns the hex encoding of the address, mainly for logs
func (address Address) String() string {
	return hex.EncodeToString(address[:])
}

// Hex returns the 40-nibble hex encoding that is used as the address
// path inside the accounts tree
func (address Address) Hex() string {
	return hex.EncodeToString(address[:])
}

// Encode returns the bech32 encoding of the address under the given
// human readable prefix
func (address Address) Encode(prefix string) (string, error) {
	converted, err := bech32.ConvertBits(address[:], 8, 5, true)
	if err != nil {
		return "", errors.WithStack(err)
	}
	encoded, err := bech32.Encode(prefix, converted)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return encoded, nil
}

// DecodeAddress decodes a bech32 address and makes sure it was
// encoded with expectedPrefix
func DecodeAddress(encoded string, expectedPrefix string) (Address, error) {
	var address Address
	prefix, data, err := bech32.Decode(encoded)
	if err != nil {
		return address, errors.Wrapf(err, "couldn't decode address %s", encoded)
	}
	if prefix != expectedPrefix {
		return address, errors.Errorf("address %s has prefix %s, expected %s", encoded, prefix, expectedPrefix)
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return address, errors.WithStack(err)
	}
	return NewAddressFromSlice(converted)
}
