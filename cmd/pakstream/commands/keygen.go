package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meigma/pakstream/pak"
)

func newKeygenCmd(_ *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen PREFIX",
		Short: "Generate an archive signing key pair",
		Long: `Generate an ed25519 key pair and write PREFIX.key (private, mode 0600)
and PREFIX.pub (public). Pass PREFIX.key to "pack --sign-key" and list
PREFIX.pub under AssetStreamer.TrustedKeys.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := pak.GenerateKey()
			if err != nil {
				return err
			}
			keyPath, pubPath := args[0]+".key", args[0]+".pub"
			flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
			if force {
				flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			}
			if err := writeKey(keyPath, pak.MarshalPrivateKey(priv), flags, 0o600); err != nil {
				return err
			}
			if err := writeKey(pubPath, pak.MarshalPublicKey(pub), flags, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", keyPath, pubPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing key files")
	return cmd
}

func writeKey(path, text string, flags int, perm os.FileMode) error {
	f, err := os.OpenFile(path, flags, perm) //nolint:gosec // user-provided path is intentional
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
