package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/edumall/edumall/pkg/cryptox"
	"github.com/edumall/edumall/pkg/idx"
	"github.com/edumall/edumall/pkg/jwtx"
)

// Keys bundles the signer with the key set and verifier built from it.
type Keys struct {
	Signer   jwtx.Signer
	KeySet   *jwtx.KeySet
	Verifier jwtx.Verifier
}

// InitKeys loads the Ed25519 signing key from cfg.SigningKeyFile, or
// generates an ephemeral one. Tokens signed by an ephemeral key do not
// survive a restart.
func InitKeys(cfg Config, logger *slog.Logger) (*Keys, error) {
	var (
		pemKey []byte
		kid    string
		err    error
	)

	if cfg.SigningKeyFile != "" {
		pemKey, err = os.ReadFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read signing key: %w", err)
		}
		// Stable kid for a stable key.
		kid = cryptox.FingerprintToken(string(pemKey))[:16]
		logger.Info("signing key loaded", "kid", kid, "path", cfg.SigningKeyFile)
	} else {
		pemKey, err = cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, err
		}
		kid = idx.New().String()
		logger.Warn("using ephemeral signing key - tokens will not survive restarts", "kid", kid)
	}

	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	if err := signer.Validate(); err != nil {
		return nil, err
	}

	keys := jwtx.NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return nil, err
	}

	return &Keys{
		Signer:   signer,
		KeySet:   keys,
		Verifier: jwtx.NewVerifierEdDSA(keys, cfg.Issuer, cfg.Audience),
	}, nil
}
