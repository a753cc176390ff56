// Package pakstream streams asset packages (PAK archives) into a virtual
// file namespace.
//
// A [Streamer] picks a backing provider (local disk or a remote file host),
// opens and validates the named archive, mounts it into a [vfs.MountLayer],
// builds a [Manifest] of the streamable assets it contains and hands that
// manifest to an asynchronous [Loader]. Only one streaming session runs at
// a time; a second request while one is in flight is rejected with
// [ErrStreamInProgress].
//
// # Quick Start
//
//	s := pakstream.New(pakstream.WithConfigSource(v), pakstream.WithLogger(logger))
//	if err := s.Initialize(); err != nil {
//	    return err
//	}
//	err := s.StreamPackage(ctx, "Level01", pakstream.ListenerFuncs{
//	    Prepare:  func(m pakstream.Manifest) { fmt.Println(len(m), "assets") },
//	    Complete: func() { fmt.Println("done") },
//	}, pakstream.ModeRemote, "-FileHostIP=10.0.0.5:8081")
//	if err != nil {
//	    return err
//	}
//	if err := s.BlockUntilStreamingFinished(ctx); err != nil {
//	    return err
//	}
//
// # Archives
//
// Archives are created and read by the [pak] package. The archive name
// passed to StreamPackage is resolved to a provider path by appending the
// configured extension (".pak" by default) and must exist as a file.
//
// # Configuration
//
// Settings are read once, in Initialize, from a [config.Source] such as a
// *viper.Viper. Absent keys take the defaults documented in package config.
package pakstream
