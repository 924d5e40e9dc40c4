// Package feedpoll implements an adaptive feed-polling scheduler.
//
// feedpoll continuously decides, per feed source, when to re-check it,
// adapts that cadence to observed activity and failure rates, and hands
// newly discovered items downstream exactly once. Sources that publish
// frequently are polled more often; quiet sources back off toward a daily
// cadence; failing sources back off exponentially with jitter.
//
// The typical lifecycle is:
//
//	fp, err := feedpoll.New(
//	    feedpoll.WithFeedsFile("feeds.json"),
//	    feedpoll.WithSink(sink),
//	)
//	if err != nil {
//	    slog.Error("failed to create feedpoll", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	fp.Start(ctx) // blocks until context cancelled
//
// Each active source is polled on its own interval by a bounded worker
// pool. A poll fetches the feed (with conditional GET), drops entries
// already seen anywhere in the process, validates the rest, persists and
// publishes accepted entries, then recomputes the source's interval from
// the outcome. No source ever has two polls in flight at once, and no
// single source's failure can take down the scheduler or other sources.
//
// Collaborators (the reader, sink, store, and validation rules) are
// injected at construction via functional options; there is no ambient
// global state.
package feedpoll
