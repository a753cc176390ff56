package pakstream

import "log/slog"

// Listener observes a streaming session.
//
// OnPrepareAssetStreaming is called synchronously from StreamPackage once
// the manifest is built, before the loader starts. OnAssetStreamComplete is
// called once when the session completes. Neither is called with internal
// locks held.
type Listener interface {
	OnPrepareAssetStreaming(manifest Manifest)
	OnAssetStreamComplete()
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Prepare  func(Manifest)
	Complete func()
}

// OnPrepareAssetStreaming calls Prepare.
func (l ListenerFuncs) OnPrepareAssetStreaming(manifest Manifest) {
	if l.Prepare != nil {
		l.Prepare(manifest)
	}
}

// OnAssetStreamComplete calls Complete.
func (l ListenerFuncs) OnAssetStreamComplete() {
	if l.Complete != nil {
		l.Complete()
	}
}

// LogListener logs session events.
type LogListener struct {
	Logger *slog.Logger
}

func (l LogListener) log() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// OnPrepareAssetStreaming logs the manifest.
func (l LogListener) OnPrepareAssetStreaming(manifest Manifest) {
	l.log().Info("preparing asset streaming", "assets", len(manifest))
	for _, path := range manifest {
		l.log().Debug("streamed asset", "path", path)
	}
}

// OnAssetStreamComplete logs completion.
func (l LogListener) OnAssetStreamComplete() {
	l.log().Info("asset streaming complete")
}
