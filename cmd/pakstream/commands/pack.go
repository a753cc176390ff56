package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meigma/pakstream/pak"
)

func newPackCmd(a *app) *cobra.Command {
	var (
		compression string
		signKey     string
		maxFiles    int
	)
	cmd := &cobra.Command{
		Use:   "pack DIR OUT",
		Short: "Pack a content directory into a PAK archive",
		Long: `Pack every regular file under DIR into the archive OUT.

Paths inside the archive are relative to DIR. The archive is written to a
temporary file next to OUT and renamed into place when complete.

Examples:
  # Pack with zstd compression
  pakstream pack ./Content/Level01 Level01.pak

  # Pack and sign
  pakstream pack ./Content/Level01 Level01.pak --sign-key release.key`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok := pak.ParseCompression(compression)
			if !ok {
				return fmt.Errorf("unknown compression %q (want zstd or none)", compression)
			}
			opts := []pak.CreateOption{
				pak.CreateWithCompression(c),
				pak.CreateWithLogger(a.logger),
				pak.CreateWithProgress(func(ev pak.ProgressEvent) {
					if ev.Stage == pak.StageWriting {
						a.logger.Debug("packed", "path", ev.Path, "done", ev.FilesDone, "total", ev.FilesTotal)
					}
				}),
			}
			if maxFiles > 0 {
				opts = append(opts, pak.CreateWithMaxFiles(maxFiles))
			}
			if signKey != "" {
				key, err := pak.LoadPrivateKey(signKey)
				if err != nil {
					return err
				}
				opts = append(opts, pak.CreateWithSigningKey(key))
			}

			root, err := os.OpenRoot(args[0])
			if err != nil {
				return err
			}
			defer root.Close()

			sum, err := pak.WriteFile(cmd.Context(), root.FS(), args[1], opts...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d files (%d compressed), %d data bytes, signed=%t\nindex %s\n",
				args[1], sum.Files, sum.Compressed, sum.DataSize, sum.Signed, sum.IndexDigest)
			return nil
		},
	}
	cmd.Flags().StringVar(&compression, "compression", "zstd", "entry compression: zstd or none")
	cmd.Flags().StringVar(&signKey, "sign-key", "", "private key file to sign the archive with")
	cmd.Flags().IntVar(&maxFiles, "max-files", 0, "maximum number of files (default: pak.DefaultMaxFiles)")
	return cmd
}
