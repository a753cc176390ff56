// Package vfs provides the virtual file layer that archives are streamed
// through.
//
// A Provider backs the namespace with real storage: LocalProvider serves a
// directory confined with os.Root, RemoteProvider talks to a pakstream file
// host over HTTP. MountLayer decorates a provider with mounted archives so
// that archive contents shadow the provider's own files under each
// archive's mount point.
package vfs
