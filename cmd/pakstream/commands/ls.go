package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meigma/pakstream/pak"
)

func newLsCmd(a *app) *cobra.Command {
	var (
		mountPoint  string
		trustedKeys []string
		signedOnly  bool
		verify      bool
	)
	cmd := &cobra.Command{
		Use:   "ls ARCHIVE",
		Short: "List the entries of a PAK archive",
		Long: `Validate ARCHIVE and list its entries.

With --mount-point, paths are printed as they appear once the archive is
mounted. With --verify, the whole data region is hashed first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []pak.Option{
				pak.WithLogger(a.logger),
				pak.WithSignedOnly(signedOnly),
				pak.WithVerifyData(verify),
			}
			if len(trustedKeys) > 0 {
				keys, err := pak.LoadPublicKeys(trustedKeys...)
				if err != nil {
					return err
				}
				opts = append(opts, pak.WithTrustedKeys(keys...))
			}
			if mountPoint != "" {
				opts = append(opts, pak.WithMountPoint(mountPoint))
			}

			archive, err := pak.OpenFile(args[0], opts...)
			if err != nil {
				return err
			}
			defer archive.Close()

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tSIZE\tSTORED\tCOMPRESSION")
			for entry := range archive.Entries() {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n",
					archive.MountedPath(entry.Path), entry.OriginalSize, entry.DataSize, entry.Compression)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			data, _ := archive.DataDigest()
			fmt.Fprintf(out, "\n%d entries, signed=%t\nindex %s\ndata  %s\n",
				archive.Len(), archive.Signed(), archive.IndexDigest(), data)
			return nil
		},
	}
	cmd.Flags().StringVar(&mountPoint, "mount-point", "", "print paths under this mount point")
	cmd.Flags().StringSliceVar(&trustedKeys, "trusted-key", nil, "public key file accepted for signatures (repeatable)")
	cmd.Flags().BoolVar(&signedOnly, "signed", false, "require a valid signature")
	cmd.Flags().BoolVar(&verify, "verify", false, "hash the data region before listing")
	return cmd
}
