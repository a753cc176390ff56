package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/meigma/pakstream"
	"github.com/meigma/pakstream/loader"
)

func newStreamCmd(a *app) *cobra.Command {
	var (
		mode    = pakstream.ModeLocal
		cmdLine string
		wait    bool
		timeout time.Duration
		strip   bool
	)
	cmd := &cobra.Command{
		Use:   "stream NAME",
		Short: "Stream a PAK archive and load its assets",
		Long: `Open NAME (resolved to NAME.pak) from the local content directory or the
remote file host, mount it, print its manifest and load every asset.

--cmdline is passed to the provider: the local provider accepts -root=DIR,
the remote provider accepts -FileHostIP=HOST:PORT.

Examples:
  pakstream stream Level01 --wait
  pakstream stream Level01 --mode remote --cmdline "-FileHostIP=10.0.0.5:8081" --wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			settings := a.cfg.Streamer

			ld := loader.New(
				loader.WithWorkers(settings.LoaderWorkers),
				loader.WithLogger(a.logger),
				loader.WithProgress(func(done, total int, path string) {
					a.logger.Debug("asset loaded", "path", path, "done", done, "total", total)
				}),
			)
			opts := []pakstream.Option{
				pakstream.WithConfigSource(a.v),
				pakstream.WithLogger(a.logger),
				pakstream.WithLoader(ld),
			}
			if strip {
				opts = append(opts, pakstream.WithManifestNormalizer(pakstream.StripMountPoint))
			}
			s := pakstream.New(opts...)
			if err := s.Initialize(); err != nil {
				return err
			}
			defer s.Close()

			listener := pakstream.LogListener{Logger: a.logger}
			if err := s.StreamPackage(ctx, args[0], listener, mode, cmdLine); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range s.Manifest() {
				fmt.Fprintln(out, path)
			}
			if !wait {
				return nil
			}

			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if err := s.BlockUntilStreamingFinished(ctx); err != nil {
				return err
			}
			ld.Wait()
			if res, ok := ld.LastResult(); ok {
				fmt.Fprintf(out, "loaded %d/%d assets (%d bytes) in %s\n",
					res.Loaded, res.Requested, res.Bytes, res.Duration.Round(time.Millisecond))
				return res.Err
			}
			return nil
		},
	}
	cmd.Flags().Var(&mode, "mode", "provider: local or remote")
	cmd.Flags().StringVar(&cmdLine, "cmdline", "", "provider command line")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for every asset to load")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up waiting after this long (0: no limit)")
	cmd.Flags().BoolVar(&strip, "strip-mount-point", false, "print manifest paths relative to the mount point")
	return cmd
}
