package sshtunnel

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/hegde-atri/chaussettes/internal/types"
)

// KeyInfo describes a private key file on disk
type KeyInfo struct {
	Path        string
	Type        string // e.g. "ssh-ed25519"; empty if the key is encrypted in a legacy format
	Fingerprint string // SHA256 fingerprint of the public half
	Encrypted   bool   // ssh will need the passphrase from the agent
}

func (k KeyInfo) String() string {
	s := k.Path
	if k.Type != "" {
		s += " (" + k.Type + " " + k.Fingerprint + ")"
	}
	if k.Encrypted {
		s += " [passphrase protected]"
	}
	return s
}

// InspectKey reads a private key and reports its type and fingerprint.
// Passphrase-protected keys are not an error.
func InspectKey(path string) (KeyInfo, error) {
	path = types.ExpandHome(path)
	info := KeyInfo{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return KeyInfo{}, fmt.Errorf("failed to read key file: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if !errors.As(err, &missing) {
			return KeyInfo{}, fmt.Errorf("failed to parse key file: %w", err)
		}
		info.Encrypted = true
		if missing.PublicKey != nil {
			info.Type = missing.PublicKey.Type()
			info.Fingerprint = ssh.FingerprintSHA256(missing.PublicKey)
		}
		return info, nil
	}

	pub := signer.PublicKey()
	info.Type = pub.Type()
	info.Fingerprint = ssh.FingerprintSHA256(pub)
	return info, nil
}
