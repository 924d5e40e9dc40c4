package feedpoll

import (
	"github.com/jfarrow/feedpoll/internal/fetch"
	"github.com/jfarrow/feedpoll/internal/sink"
	"github.com/jfarrow/feedpoll/internal/store"
)

// The contract types live in internal/feed so the implementations below
// can satisfy them without importing this package. The assertions fail to
// compile if an implementation drifts from the public port types, or if a
// contract type moves out of the shared leaf package and reintroduces a
// dependency from an internal package back onto this one.
var (
	_ Reader = (*fetch.Fetcher)(nil)
	_ Sink   = (*sink.Log)(nil)
	_ Sink   = (*sink.Kafka)(nil)
	_ Store  = (*store.SQLite)(nil)
	_ Rule   = DefaultRules
)
