package main

import (
	"fmt"
	"os"

	"github.com/nipopow/nipowd/domain/consensus/utils/txsigning"
)

func main() {
	cfg, err := parseConfig()
	if err != nil {
		os.Exit(1)
	}

	mnemonic := cfg.Mnemonic
	if mnemonic == "" {
		mnemonic, err = txsigning.NewMnemonic()
		if err != nil {
			printErrorAndExit(fmt.Sprintf("error generating a mnemonic: %+v", err))
		}
	}

	keyPair, err := txsigning.KeyPairFromMnemonic(mnemonic, cfg.Passphrase)
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error deriving the key pair: %+v", err))
	}
	publicKey, err := txsigning.PublicKey(keyPair)
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error deriving the public key: %+v", err))
	}
	address, err := txsigning.AddressFromPublicKey(publicKey).Encode(cfg.NetParams().Prefix)
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error encoding the address: %+v", err))
	}

	fmt.Printf("Mnemonic: %s\n", mnemonic)
	fmt.Printf("Private key: %x\n", keyPair.SerializePrivateKey()[:])
	fmt.Printf("Public key: %x\n", publicKey[:])
	fmt.Printf("Address: %s\n", address)
}

func printErrorAndExit(message string) {
	fmt.Fprintln(os.Stderr, message)
	os.Exit(1)
}
