// Package notify delivers exception notices to an error-tracking API.
//
// A Dispatcher accepts notices from any goroutine through Emit and sends each
// one as a single POST over a shared connection pool. At most a fixed number
// of notices are in flight at once; anything beyond that is dropped with a
// warning. Every response is streamed back to the dispatcher loop, assembled
// by an Exchange, and classified as an Outcome that is logged and counted.
package notify
