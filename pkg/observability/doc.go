// Package observability provides OpenTelemetry tracing and RED metrics for
// Deckhand, adapted from the teacher's OpenTelemetry provider setup.
//
// Initialize at startup:
//
//	p, err := observability.New(ctx, observability.DefaultConfig())
//	defer p.Shutdown(ctx)
//
// Wrap a render or a revision write:
//
//	ctx, end := p.TrackRender(ctx, revisionID)
//	defer func() { end(err) }()
package observability
