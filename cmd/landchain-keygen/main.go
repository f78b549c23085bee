package main

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/crypto"
)

var (
	genScheme string
	genKeyID  string
	genOutDir string
)

var rootCmd = &cobra.Command{
	Use:   "landchain-keygen",
	Short: "Generate participant signing keypairs for the landchain registry",
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one keypair and write it into a keyring directory",
	Long: `Generate writes the public key as <id>.pem, the file layout the
registry's dir key source resolves participants from, and the private key
alongside it with owner-only permissions.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := generate(genScheme, genKeyID, genOutDir); err != nil {
			fmt.Fprintf(os.Stderr, "landchain-keygen: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&genScheme, "scheme", "s", crypto.SchemeEd25519,
		fmt.Sprintf("signature scheme: %s, %s, %s", crypto.SchemeEd25519, crypto.SchemeECDSAP256, crypto.SchemeSecp256k1))
	generateCmd.Flags().StringVarP(&genKeyID, "id", "i", "", "key identifier; names the output files")
	generateCmd.Flags().StringVarP(&genOutDir, "out", "o", ".", "keyring directory to write into")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func generate(scheme, keyID, outDir string) error {
	if keyID == "" {
		return fmt.Errorf("--id is required")
	}
	if strings.ContainsAny(keyID, `/\`) || keyID == "." || keyID == ".." {
		return fmt.Errorf("key id %q must not contain path separators", keyID)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create keyring directory: %w", err)
	}

	var pubPEM, privPEM []byte
	switch scheme {
	case crypto.SchemeEd25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("generate ed25519 key: %w", err)
		}
		if pubPEM, privPEM, err = encodePKIXPair(pub, priv); err != nil {
			return err
		}
	case crypto.SchemeECDSAP256:
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return fmt.Errorf("generate ecdsa-p256 key: %w", err)
		}
		if pubPEM, privPEM, err = encodePKIXPair(&priv.PublicKey, priv); err != nil {
			return err
		}
	case crypto.SchemeSecp256k1:
		priv, err := ethcrypto.GenerateKey()
		if err != nil {
			return fmt.Errorf("generate secp256k1 key: %w", err)
		}
		// x509 has no secp256k1 support; the public side is the raw
		// uncompressed SEC1 point in a PEM block, the private side the
		// 32-byte hex format go-ethereum tooling expects.
		pubPEM = pem.EncodeToMemory(&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: ethcrypto.FromECDSAPub(&priv.PublicKey),
		})
		hexPath := filepath.Join(outDir, keyID+".priv.hex")
		if err := ethcrypto.SaveECDSA(hexPath, priv); err != nil {
			return fmt.Errorf("write private key: %w", err)
		}
		if err := os.WriteFile(filepath.Join(outDir, keyID+".pem"), pubPEM, 0o644); err != nil {
			return fmt.Errorf("write public key: %w", err)
		}
		fmt.Printf("wrote %s.pem and %s.priv.hex to %s (scheme %s)\n", keyID, keyID, outDir, scheme)
		return nil
	default:
		return fmt.Errorf("unknown scheme %q", scheme)
	}

	if err := os.WriteFile(filepath.Join(outDir, keyID+".pem"), pubPEM, 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}
	privPath := filepath.Join(outDir, keyID+".priv.pem")
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	fmt.Printf("wrote %s.pem and %s.priv.pem to %s (scheme %s)\n", keyID, keyID, outDir, scheme)
	return nil
}

func encodePKIXPair(pub any, priv any) (pubPEM, privPEM []byte, err error) {
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	return pubPEM, privPEM, nil
}
